package framez

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// thread runs one pipeline loop on a goroutine locked to its own OS thread.
//
// The thread:
//   - Pins the loop to an OS thread for its whole lifetime
//   - Logs start and exit with the OS thread id
//   - Supports join for ordered shutdown
type thread struct {
	name   string
	logger *slog.Logger

	// WaitGroup tracking the loop goroutine for join
	wg sync.WaitGroup

	// OS thread id while the loop runs, 0 otherwise
	tid atomic.Int64
}

func newThread(name string, logger *slog.Logger) *thread {
	return &thread{name: name, logger: logger.With("thread", name)}
}

// start launches loop. It must be called at most once.
func (t *thread) start(loop func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		tid := osThreadID()
		t.tid.Store(int64(tid))
		defer t.tid.Store(0)

		t.logger.Debug("thread started", "tid", tid)
		loop()
		t.logger.Debug("thread exited")
	}()
}

// current reports whether the caller runs on this thread's loop, for
// example inside a callback the loop made. Always false where OS thread
// ids are not available.
func (t *thread) current() bool {
	tid := osThreadID()
	return tid != 0 && t.tid.Load() == int64(tid)
}

// join blocks until the loop has returned.
func (t *thread) join() {
	t.wg.Wait()
}

// callSafely runs a collaborator call with panic recovery.
//
// A panicking Scene or RenderSurface must not take the process down with
// it; the panic is turned into an error that stops the pipeline.
func callSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCollaboratorPanicked, r)
		}
	}()
	return fn()
}
