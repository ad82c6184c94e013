package js

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SetupGlobal creates a setup function binding value to name on the global object.
func SetupGlobal(name string, value any) SetupFunction {
	return func(vm *goja.Runtime, engine *Engine) error {
		log.Debug().Str("name", name).Msg("Setting up global")
		return errors.Wrapf(vm.Set(name, value), "set global %s", name)
	}
}

// SetupInProcess creates a setup function that hands fn an in-process runtime
// over the loop's VM. fn runs on the loop goroutine and must not retain the
// runtime beyond loop callbacks.
func SetupInProcess(fn func(rt *VMRuntime) error) SetupFunction {
	return func(vm *goja.Runtime, engine *Engine) error {
		return fn(NewVMRuntime(vm))
	}
}

// WithNativeModule makes a Go module available to require().
func WithNativeModule(name string, loader require.ModuleLoader) Option {
	return func(e *Engine) error {
		if loader == nil {
			return errors.Errorf("nil loader for module %s", name)
		}
		e.nativeModules = append(e.nativeModules, nativeModule{name: name, loader: loader})
		return nil
	}
}
