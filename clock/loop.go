package clock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("clock: loop stopped")

// Loop is the real-time Scheduler. Tickers run in their own goroutines but
// only forward work; every job and every closure passed to Do executes on the
// goroutine that called Run, one at a time.
type Loop struct {
	tasks chan func()

	quit     chan struct{}
	quitOnce sync.Once
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewLoop creates an idle loop. Jobs may be registered before Run.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
	}
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Every registers fn to run every d on the loop goroutine. Ticks that arrive
// while the loop is busy are dropped rather than queued.
func (l *Loop) Every(d time.Duration, fn func()) func() {
	var stopped atomic.Bool
	done := make(chan struct{})
	ticker := time.NewTicker(d)

	run := func() {
		if !stopped.Load() {
			fn()
		}
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tasks <- run:
				case <-done:
					return
				case <-l.quit:
					return
				}
			case <-done:
				return
			case <-l.quit:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopped.Store(true)
			close(done)
		})
	}
}

// Do runs fn on the loop goroutine and waits for it to finish. It must not be
// called from a job, which already runs on the loop goroutine.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.quit:
		return ErrLoopStopped
	}
	<-finished
	return nil
}

// Run executes jobs until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("clock: loop already running")
	}
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-l.tasks:
			task()
		}
	}
}

func (l *Loop) stop() {
	l.quitOnce.Do(func() { close(l.quit) })
	l.wg.Wait()
	l.running.Store(false)
}
