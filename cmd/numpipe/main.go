package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aradilov/numpipe"
	"github.com/aradilov/numpipe/internal/config"
	"github.com/valyala/fastrand"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.FileName)
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("numpipe %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		os.Exit(0)
	}

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := buildLogger(cfg.LogLevel).Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, log, cfg)
	stop()

	if err != nil {
		log.Error("run failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func buildLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(lvl)
	return zap.Must(logConfig.Build())
}

// run creates the channel, pushes Writers*Values distinct integers through
// it and checks that each one came out exactly once.
func run(ctx context.Context, log *zap.Logger, cfg config.Config) error {
	h := cfg.Harness
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	pipe, err := numpipe.New(uint64(cfg.PipeSize),
		numpipe.WithLogger(log),
		numpipe.WithMaxCapacity(uint64(cfg.MaxPipeSize)),
	)
	if err != nil {
		return fmt.Errorf("numpipe init failed: %w", err)
	}

	total := h.Writers * h.Values
	seen := make([]int32, total)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < h.Writers; w++ {
		w := w
		g.Go(func() error {
			return writer(gctx, pipe, w, w*h.Values, h.Values, h.Jitter)
		})
	}
	for r, n := range split(total, h.Readers) {
		r, n := r, n
		g.Go(func() error {
			return reader(gctx, log, pipe, r, n, h.Jitter, seen)
		})
	}
	runErr := g.Wait()

	s := pipe.Stats()
	log.Info("run finished",
		zap.Uint64("capacity", s.Capacity),
		zap.Uint64("writes", s.Writes),
		zap.Uint64("reads", s.Reads),
		zap.Uint64("writes_blocked", s.WritesBlocked),
		zap.Uint64("reads_blocked", s.ReadsBlocked),
		zap.Uint64("writes_interrupted", s.WritesInterrupted),
		zap.Uint64("reads_interrupted", s.ReadsInterrupted),
		zap.Int("left", s.Len),
	)

	if runErr == nil {
		for v, n := range seen {
			if n != 1 {
				runErr = fmt.Errorf("value %d read %d times (expected 1)", v, n)
				break
			}
		}
	}

	if err := pipe.Destroy(); err != nil {
		return errors.Join(runErr, fmt.Errorf("numpipe teardown: %w", err))
	}
	return runErr
}

func writer(ctx context.Context, pipe *numpipe.Channel, id, first, n int, jitter time.Duration) error {
	h, err := pipe.Open(numpipe.ModeWrite)
	if err != nil {
		return fmt.Errorf("writer %d: %w", id, err)
	}
	defer h.Close()

	buf := make([]byte, numpipe.UnitSize)
	for i := 0; i < n; i++ {
		if err := pause(ctx, jitter); err != nil {
			return fmt.Errorf("writer %d: %w", id, err)
		}
		binary.LittleEndian.PutUint32(buf, uint32(first+i))
		if _, err := h.WriteContext(ctx, buf); err != nil {
			return fmt.Errorf("writer %d: %w", id, err)
		}
	}
	return nil
}

func reader(ctx context.Context, log *zap.Logger, pipe *numpipe.Channel, id, n int, jitter time.Duration, seen []int32) error {
	h, err := pipe.Open(numpipe.ModeRead)
	if err != nil {
		return fmt.Errorf("reader %d: %w", id, err)
	}
	defer h.Close()

	buf := make([]byte, numpipe.UnitSize)
	for i := 0; i < n; i++ {
		if err := pause(ctx, jitter); err != nil {
			return fmt.Errorf("reader %d: %w", id, err)
		}
		if _, err := h.ReadContext(ctx, buf); err != nil {
			return fmt.Errorf("reader %d: %w", id, err)
		}

		v := int32(binary.LittleEndian.Uint32(buf))
		if v < 0 || int(v) >= len(seen) {
			return fmt.Errorf("reader %d: out-of-range value %d", id, v)
		}
		atomic.AddInt32(&seen[v], 1)
		log.Debug("got", zap.Int("reader", id), zap.Int32("value", v))
	}
	return nil
}

// split spreads total reads over n readers as evenly as possible.
func split(total, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = total / n
		if i < total%n {
			out[i]++
		}
	}
	return out
}

// pause sleeps for a random duration below limit, or until ctx ends.
func pause(ctx context.Context, limit time.Duration) error {
	if limit <= 0 {
		return nil
	}
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}

	t := time.NewTimer(time.Duration(fastrand.Uint32n(uint32(limit))))
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", numpipe.ErrInterrupted, context.Cause(ctx))
	}
}
