package cmds

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/go-go-golems/jsproxy/pkg/interop"
	"github.com/go-go-golems/jsproxy/pkg/interop/observe"
	"github.com/go-go-golems/jsproxy/pkg/js"
	"github.com/go-go-golems/jsproxy/pkg/proxy"
	"github.com/go-go-golems/jsproxy/pkg/task"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrUnknownResultType = errors.New("unknown result type")

// CallSettings configures a single call.
type CallSettings struct {
	Scripts []string
	Sync    bool
	As      string
	Output  string
	Trace   bool
}

func NewCallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <path> [args...]",
		Short: "Load scripts and call a JavaScript function through a proxy",
		Long: `Walks the dotted path from the global object, one member at a time,
and calls the last member with the given arguments. Arguments are parsed as YAML,
so 42, true, "text" and {a: 1} become a number, a bool, a string and an object.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := CallSettings{
				Scripts: viper.GetStringSlice("script"),
				Sync:    viper.GetBool("sync"),
				As:      viper.GetString("as"),
				Output:  viper.GetString("output"),
				Trace:   viper.GetBool("trace"),
			}
			return RunCall(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), settings, args[0], args[1:])
		},
	}
	cmd.Flags().StringSlice("script", nil, "JavaScript files to load, in order")
	cmd.Flags().Bool("sync", false, "Use the synchronous proxies on the event loop")
	cmd.Flags().String("as", "any", "Result type (string, number, bool, any, object)")
	cmd.Flags().String("output", "yaml", "Output format (yaml, json)")
	cmd.Flags().Bool("trace", false, "Print invocation events to stderr")
	return cmd
}

// RunCall evaluates the scripts in a fresh engine, calls path with args and
// writes the result to w. Invocation events go to traceW when tracing.
func RunCall(ctx context.Context, w io.Writer, traceW io.Writer, settings CallSettings, path string, rawArgs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	args, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}

	opts := []js.Option{}
	for _, script := range settings.Scripts {
		src, err := os.ReadFile(script)
		if err != nil {
			return errors.Wrapf(err, "read script %s", script)
		}
		opts = append(opts, js.WithScript(filepath.Base(script), string(src)))
	}

	engine, err := js.NewEngine(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close engine")
		}
	}()
	if err := engine.Start(); err != nil {
		return err
	}

	var observer *observe.Observer
	if settings.Trace {
		var stop func()
		observer, stop, err = startTrace(ctx, traceW)
		if err != nil {
			return err
		}
		defer stop()
	}

	var result any
	if settings.Sync {
		result, err = engine.Bridge().Call(ctx, "jsproxy.call", func(_ context.Context, vm *goja.Runtime) (any, error) {
			var rt interop.InProcessRuntime = js.NewVMRuntime(vm)
			if observer != nil {
				rt = observer.Runtime(rt).(interop.InProcessRuntime)
			}
			p, err := proxy.NewSyncRuntime(rt)
			if err != nil {
				return nil, err
			}
			return callSync(p, path, settings.As, args)
		})
	} else {
		var rt interop.Runtime = engine.Runtime()
		if observer != nil {
			rt = observer.Runtime(rt)
		}
		var p *proxy.AsyncRuntime
		p, err = proxy.AsDynamic(rt)
		if err == nil {
			result, err = callAsync(ctx, p, path, settings.As, args)
		}
	}
	if err != nil {
		return err
	}

	return writeResult(w, settings.Output, result)
}

func parseArgs(rawArgs []string) ([]any, error) {
	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		if err := yaml.Unmarshal([]byte(raw), &args[i]); err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
	}
	return args, nil
}

func splitPath(path string) ([]string, string) {
	segments := strings.Split(path, ".")
	return segments[:len(segments)-1], segments[len(segments)-1]
}

func callAsync(ctx context.Context, p proxy.AsyncProxy, path string, as string, args []any) (any, error) {
	parents, last := splitPath(path)
	for _, segment := range parents {
		next, err := p.Get(ctx, segment).Await(ctx)
		if err != nil {
			return nil, err
		}
		p = next
	}

	switch as {
	case "string":
		return await(ctx, proxy.InvokeAsync[string](ctx, p, last, args...))
	case "number":
		return await(ctx, proxy.InvokeAsync[float64](ctx, p, last, args...))
	case "bool":
		return await(ctx, proxy.InvokeAsync[bool](ctx, p, last, args...))
	case "object":
		return await(ctx, proxy.InvokeAsync[map[string]any](ctx, p, last, args...))
	case "", "any":
		return await(ctx, proxy.InvokeAsync[any](ctx, p, last, args...))
	default:
		return nil, errors.Wrap(ErrUnknownResultType, as)
	}
}

func await[T any](ctx context.Context, t *task.Task[T]) (any, error) {
	v, err := t.Await(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func callSync(p proxy.SyncProxy, path string, as string, args []any) (any, error) {
	parents, last := splitPath(path)
	for _, segment := range parents {
		next, err := p.Get(segment)
		if err != nil {
			return nil, err
		}
		p = next
	}

	switch as {
	case "string":
		return invoke[string](p, last, args)
	case "number":
		return invoke[float64](p, last, args)
	case "bool":
		return invoke[bool](p, last, args)
	case "object":
		return invoke[map[string]any](p, last, args)
	case "", "any":
		return invoke[any](p, last, args)
	default:
		return nil, errors.Wrap(ErrUnknownResultType, as)
	}
}

func invoke[T any](p proxy.SyncProxy, name string, args []any) (any, error) {
	v, err := proxy.Invoke[T](p, name, args...)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func writeResult(w io.Writer, output string, result any) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		defer func() {
			_ = enc.Close()
		}()
		return enc.Encode(result)
	default:
		return errors.Errorf("unknown output format %q", output)
	}
}

// startTrace publishes invocation events on an in-memory channel and prints them
// to w as JSON lines until stop is called.
func startTrace(ctx context.Context, w io.Writer) (*observe.Observer, func(), error) {
	pubSub := observe.NewGoChannel(log.Logger)
	observer := observe.NewObserver(pubSub, "")
	ctx, cancel := context.WithCancel(ctx)
	events, err := observe.Subscribe(ctx, pubSub, observer.Topic())
	if err != nil {
		cancel()
		return nil, nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		enc := json.NewEncoder(w)
		for ev := range events {
			if err := enc.Encode(ev); err != nil {
				log.Warn().Err(err).Msg("failed to write invocation event")
			}
		}
	}()

	stop := func() {
		if err := pubSub.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close trace channel")
		}
		cancel()
		<-done
	}
	return observer, stop, nil
}
