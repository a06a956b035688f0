package shell

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Runtime is the black-box windowing runtime the bootstrapper drives. The
// real implementation lives outside this module (native window toolkit);
// the bootstrapper only needs init, a blocking run loop, and a close
// callback.
type Runtime interface {
	// Init creates the native window/runtime context. Failure is fatal
	// for the application.
	Init() error
	// Run transfers control to the runtime's event loop and blocks until
	// the window closes or the process receives a termination signal.
	Run() error
	// OnCloseRequested registers a callback fired as soon as the user
	// (or OS) requests the window to close, before Run returns.
	OnCloseRequested(fn func())
}

// SignalRuntime is the bundled headless runtime: it has no window and
// treats SIGINT/SIGTERM (or a programmatic Close) as the close request.
// The CLI uses it when running without a native toolkit; tests drive it
// through Close.
type SignalRuntime struct {
	mu       sync.Mutex
	closeFns []func()
	closeCh  chan struct{}
	once     sync.Once
	inited   bool
}

func NewSignalRuntime() *SignalRuntime {
	return &SignalRuntime{closeCh: make(chan struct{})}
}

func (r *SignalRuntime) Init() error {
	r.mu.Lock()
	r.inited = true
	r.mu.Unlock()
	return nil
}

func (r *SignalRuntime) OnCloseRequested(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.closeFns = append(r.closeFns, fn)
	r.mu.Unlock()
}

// Run blocks until a termination signal arrives or Close is called, then
// fires the close callbacks and returns.
func (r *SignalRuntime) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		r.fireClose()
	case <-r.closeCh:
	}
	return nil
}

// Close requests the runtime to shut down, as if the window were closed.
func (r *SignalRuntime) Close() {
	r.fireClose()
}

func (r *SignalRuntime) fireClose() {
	r.once.Do(func() {
		r.mu.Lock()
		fns := append([]func(){}, r.closeFns...)
		r.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
		close(r.closeCh)
	})
}
