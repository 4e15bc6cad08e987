/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// SignalContext is cancelled on SIGINT or SIGTERM or when parent is done
func SignalContext(parent context.Context, l *Logger, dumpGoroutines bool) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case <-ctx.Done():
		case sig := <-sigs:
			l.Infof("%s received, stopping", sig)
			if dumpGoroutines {
				buf := make([]byte, 1<<20)
				n := runtime.Stack(buf, true)
				l.Infof("*** goroutine dump...\n%s\n*** end", buf[:n])
			}
			cancel()
		}
	}()
	return ctx, cancel
}

func (r *Runner) handleShutdownSignal() {
	ctx, stop := SignalContext(r.TimeoutCtx, r.L, r.Cfg.GoroutinesDump)
	go func() {
		defer stop()
		<-ctx.Done()
		r.CancelFunc()
	}()
}

// ImmediateTicker fires right away, then every repeat, channel is closed when ctx is done
func ImmediateTicker(ctx context.Context, repeat time.Duration) <-chan time.Time {
	c := make(chan time.Time)
	go func() {
		defer close(c)
		ticker := time.NewTicker(repeat)
		defer ticker.Stop()
		tm := time.Now()
		for {
			select {
			case c <- tm:
			case <-ctx.Done():
				return
			}
			select {
			case tm = <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return c
}

func CreateFileOrReplace(fname string) (*os.File, error) {
	f, err := os.Create(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create file %s", fname)
	}
	return f, nil
}

func CreateFileOrAppend(fname string) (*os.File, error) {
	f, err := os.OpenFile(fname, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file %s", fname)
	}
	return f, nil
}

// MaxRPS max of tick rates, 1 if there were no ticks
func MaxRPS(rates []float64) float64 {
	if len(rates) == 0 {
		return 1
	}
	max := rates[0]
	for _, v := range rates[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
