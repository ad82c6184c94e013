package js

import (
	"context"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/go-go-golems/jsproxy/pkg/js/runtimebridge"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine manages a single goja VM running on an event loop.
//
// The loop goroutine is owned by an errgroup so Close can wait for it. All
// access to the VM goes through the runtime bridge; Runtime returns an
// interop.Runtime that posts every invocation to the loop.
type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	Loop     *eventloop.EventLoop
	bridge   *runtimebridge.Bridge
	registry *require.Registry

	mu             sync.Mutex
	started        bool
	stopped        bool
	setupFunctions []SetupFunction
	scripts        []script
	nativeModules  []nativeModule
}

type nativeModule struct {
	name   string
	loader require.ModuleLoader
}

type script struct {
	name   string
	source string
}

// SetupFunction is called on the loop goroutine during Start.
type SetupFunction func(vm *goja.Runtime, engine *Engine) error

// Option configures an Engine
type Option func(*Engine) error

// WithSetupFunction adds a setup function to be called during Start()
func WithSetupFunction(fn SetupFunction) Option {
	return func(e *Engine) error {
		if fn == nil {
			return errors.New("nil setup function")
		}
		e.setupFunctions = append(e.setupFunctions, fn)
		log.Debug().Int("count", len(e.setupFunctions)).Msg("Added setup function via option")
		return nil
	}
}

// WithSetupFunctions adds multiple setup functions at once
func WithSetupFunctions(fns ...SetupFunction) Option {
	return func(e *Engine) error {
		for _, fn := range fns {
			if err := WithSetupFunction(fn)(e); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithScript evaluates source after the setup functions have run. Scripts run in
// the order they were added.
func WithScript(name, source string) Option {
	return func(e *Engine) error {
		e.scripts = append(e.scripts, script{name: name, source: source})
		log.Debug().Str("script", name).Msg("Added script via option")
		return nil
	}
}

// WithModuleRegistry sets the registry used to resolve require() calls. Modules
// added with WithNativeModule are registered on it, whatever the option order.
func WithModuleRegistry(registry *require.Registry) Option {
	return func(e *Engine) error {
		if registry == nil {
			return errors.New("nil module registry")
		}
		if e.registry != nil && e.registry != registry {
			return errors.New("module registry already set")
		}
		e.registry = registry
		return nil
	}
}

// NewEngine creates an Engine. The event loop only starts running with Start.
//
//	engine, err := NewEngine(
//	    WithScript("app.js", src),
//	)
//	if err != nil { ... }
//	if err := engine.Start(); err != nil { ... }
//	defer engine.Close()
//	p, _ := proxy.AsDynamic(engine.Runtime())
func NewEngine(opts ...Option) (*Engine, error) {
	log.Debug().Msg("Creating new Engine")
	ctx, cancel := context.WithCancel(context.Background())
	eg, groupCtx := errgroup.WithContext(ctx)

	eng := &Engine{
		ctx:    groupCtx,
		cancel: cancel,
		eg:     eg,
	}

	for i, opt := range opts {
		if err := opt(eng); err != nil {
			cancel()
			return nil, errors.Wrapf(err, "failed to apply option %d", i)
		}
	}

	if eng.registry == nil {
		eng.registry = require.NewRegistry()
	}
	for _, m := range eng.nativeModules {
		eng.registry.RegisterNativeModule(m.name, m.loader)
		log.Debug().Str("module", m.name).Msg("Registered native module")
	}
	eng.Loop = eventloop.NewEventLoop(
		eventloop.WithRegistry(eng.registry),
		eventloop.EnableConsole(false),
	)
	eng.bridge = runtimebridge.New(eng.Loop)

	log.Debug().Msg("Engine initialization complete")
	return eng, nil
}

// Start runs the event loop, then calls the setup functions and evaluates the
// scripts on it. The first failure is returned and leaves the loop running, so
// Close must still be called.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if e.started {
		e.mu.Unlock()
		return ErrEngineStarted
	}
	e.started = true
	setupFunctions := append([]SetupFunction(nil), e.setupFunctions...)
	scripts := append([]script(nil), e.scripts...)
	e.mu.Unlock()

	log.Debug().Msg("Starting Engine event loop")
	e.eg.Go(func() error {
		log.Debug().Msg("Starting JS event loop in errgroup")
		defer log.Debug().Msg("JS event loop finished")
		e.Loop.StartInForeground()
		return nil
	})

	_, err := e.bridge.Call(e.ctx, "engine.Setup", func(_ context.Context, vm *goja.Runtime) (any, error) {
		log.Debug().Msg("Setting up JavaScript environment")
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		setupConsole(vm)

		for i, setupFn := range setupFunctions {
			log.Debug().Int("index", i).Msg("Calling setup function")
			if err := setupFn(vm, e); err != nil {
				return nil, errors.Wrapf(err, "setup function %d", i)
			}
		}
		for _, s := range scripts {
			log.Debug().Str("script", s.name).Msg("Evaluating script")
			if _, err := vm.RunScript(s.name, s.source); err != nil {
				return nil, errors.Wrapf(err, "script %s", s.name)
			}
		}

		log.Debug().Msg("JavaScript environment setup complete")
		return nil, nil
	})
	return err
}

// RunString evaluates src on the loop and returns its exported value.
func (e *Engine) RunString(ctx context.Context, src string) (any, error) {
	if err := e.checkStarted(); err != nil {
		return nil, err
	}
	return e.bridge.Call(ctx, "engine.RunString", func(_ context.Context, vm *goja.Runtime) (any, error) {
		v, err := vm.RunString(src)
		if err != nil {
			log.Error().Err(err).Msg("JavaScript execution failed")
			return nil, err
		}
		return v.Export(), nil
	})
}

// Runtime returns an asynchronous runtime handle over the loop.
func (e *Engine) Runtime() *LoopRuntime {
	return &LoopRuntime{bridge: e.bridge}
}

func (e *Engine) Bridge() *runtimebridge.Bridge {
	return e.bridge
}

func (e *Engine) checkStarted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if !e.started {
		return ErrEngineNotStarted
	}
	return nil
}

// Stop stops the event loop. Pending and later invocations fail with
// ErrEngineStopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	e.bridge.Close()
	if !e.started {
		return
	}
	log.Debug().Msg("Stopping engine")
	e.Loop.Stop()
}

// Wait waits for all goroutines managed by the engine to complete
func (e *Engine) Wait() error {
	log.Debug().Msg("Waiting for engine goroutines to complete")
	err := e.eg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Engine finished with error")
		return err
	}
	log.Debug().Msg("All engine goroutines completed")
	return nil
}

// Close shuts down the engine
func (e *Engine) Close() error {
	log.Debug().Msg("Closing engine")
	e.cancel()
	e.Stop()
	return e.Wait()
}
