// Package engine runs the long-lived background modules of the sync runtime:
// the store append listener, the maintenance sweeper and the usage reporter.
// Each module runs on its own goroutine under a shared root context and is
// restarted on failure.
package engine

import (
	"context"
	"sync"
	"time"

	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

const (
	// Delay before restarting a module that exited with an error.
	GracefulRetryDelay = 3 * time.Second
)

// Module is one unit of background work. RunModule blocks until ctx is done
// or an unrecoverable error occurs; returning an error schedules a restart,
// returning nil retires the module.
type Module interface {
	RunModule(ctx context.Context) error

	// Name uniquely identifies the module instance. Multiple instances of the
	// same module need distinct names.
	Name() string
}

// Engine manages the execution lifecycle of each module.
type Engine struct {
	modules []Module

	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(ms []Module, ctx context.Context, cancel context.CancelFunc) *Engine {
	return &Engine{
		modules: ms,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run executes all modules and blocks until every one of them finishes.
func (e *Engine) Run() {
	var wg sync.WaitGroup

	for idx := range e.modules {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			Logger.Log.Infof("start engine module %s", e.modules[index].Name())
			runModuleWithGracefulRestart(e.ctx, e.modules[index])
			Logger.Log.Infof("module %s finished execution", e.modules[index].Name())
		}(idx)
	}

	wg.Wait()
}

// Shutdown cancels the root context. Modules observe the cancellation and
// return; Run unblocks once they all have.
func (e *Engine) Shutdown() {
	Logger.Log.Infoln("starting graceful shutdown process")
	e.cancel()
}

func runModuleWithGracefulRestart(ctx context.Context, module Module) {
	for {
		err := module.RunModule(ctx)
		if err == nil {
			return
		}
		Logger.Log.Errorf("module %s exited with error %v, retry in %v",
			module.Name(), err, GracefulRetryDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(GracefulRetryDelay):
		}
	}
}
