package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
)

// entryReturn is appended to plugin source so the compiled body yields the
// entry symbol, or undefined when the plugin never declared it.
const entryReturn = "\n;return typeof ToolPlugin === \"undefined\" ? undefined : ToolPlugin;"

var (
	errDeadline   = errors.New("evaluation deadline exceeded")
	errTerminated = errors.New("sandbox terminated")
)

// Runtime wraps a goja VM holding the installed dependency bundle. All
// methods except Interrupt must be called from the goroutine that owns it.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	logger *zap.Logger

	// Captured before any plugin runs so plugins cannot replace them
	function  goja.Constructor
	jsonParse goja.Callable
	freeze    goja.Callable
	bundle    *goja.Object

	evalID  string
	console []LogEntry

	// gen invalidates deadline timers that fire after their evaluation ended
	mu  sync.Mutex
	gen uint64
}

// NewRuntime creates a sandboxed runtime with the dependency bundle installed
func NewRuntime(config Config, logger *zap.Logger) (*Runtime, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	vm.SetMaxCallStackSize(config.MaxCallStack)

	r := &Runtime{
		vm:     vm,
		config: config,
		logger: logger,
	}

	if err := r.capturePrimitives(); err != nil {
		return nil, err
	}
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	bundle, err := r.newBundle()
	if err != nil {
		return nil, fmt.Errorf("failed to install dependency bundle: %w", err)
	}
	r.bundle = bundle

	return r, nil
}

func (r *Runtime) capturePrimitives() error {
	ctor, ok := goja.AssertConstructor(r.vm.Get("Function"))
	if !ok {
		return errors.New("Function constructor unavailable")
	}
	r.function = ctor

	parse, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("parse"))
	if !ok {
		return errors.New("JSON.parse unavailable")
	}
	r.jsonParse = parse

	freeze, ok := goja.AssertFunction(r.vm.Get("Object").ToObject(r.vm).Get("freeze"))
	if !ok {
		return errors.New("Object.freeze unavailable")
	}
	r.freeze = freeze

	return nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	// Timers are no-ops: an evaluation is a single synchronous turn
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	return r.vm.Set("console", console)
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}

		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		r.logger.Debug("plugin console",
			logging.EvalID(r.evalID),
			zap.String("level", level),
			zap.String("message", msg),
		)

		return goja.Undefined()
	}
}

// Evaluate runs one plugin evaluation under the configured deadline
func (r *Runtime) Evaluate(evalID, code, parameters string) (res Result) {
	r.evalID = evalID
	r.console = nil
	disarm := r.armDeadline()

	defer func() {
		disarm()
		r.forgetEntry()
		res.Console = r.console
		r.console = nil
		r.evalID = ""
	}()

	return r.evaluate(code, parameters)
}

// forgetEntry removes a ToolPlugin the plugin assigned to the global object
// so the next evaluation cannot pick it up.
func (r *Runtime) forgetEntry() {
	if err := r.vm.GlobalObject().Delete("ToolPlugin"); err != nil {
		r.logger.Debug("failed to clear plugin entry", logging.EvalID(r.evalID), zap.Error(err))
	}
}

// Interrupt stops whatever the runtime is executing. Safe from any goroutine.
func (r *Runtime) Interrupt(reason error) {
	r.vm.Interrupt(reason)
}

func (r *Runtime) evaluate(code, parameters string) Result {
	var (
		plugin     goja.Value
		factory    goja.Value
		createTool goja.Callable
		params     goja.Value
		instance   goja.Value
	)

	if f := r.step(PhaseCompile, func() error {
		body, err := r.function(nil, r.vm.ToValue(code+entryReturn))
		if err != nil {
			return err
		}
		call, ok := goja.AssertFunction(body)
		if !ok {
			return errors.New("compiled plugin is not callable")
		}
		plugin, err = call(goja.Undefined())
		return err
	}); f != nil {
		return *f
	}

	if f := r.step(PhaseContract, func() error {
		if isNullish(plugin) {
			return errors.New("ToolPlugin is not defined")
		}
		obj := plugin.ToObject(r.vm)
		define, ok := goja.AssertFunction(obj.Get("defineTool"))
		if !ok {
			return errors.New("ToolPlugin.defineTool is not a function")
		}

		var err error
		factory, err = define(obj, r.bundle)
		if err != nil {
			return err
		}
		if isNullish(factory) {
			return errors.New("defineTool did not return a tool factory")
		}
		createTool, ok = goja.AssertFunction(factory.ToObject(r.vm).Get("createTool"))
		if !ok {
			return errors.New("createTool is not a function")
		}
		return nil
	}); f != nil {
		return *f
	}

	if f := r.step(PhaseParameters, func() (err error) {
		params, err = r.jsonParse(goja.Undefined(), r.vm.ToValue(parameters))
		return err
	}); f != nil {
		return *f
	}

	if f := r.step(PhaseConstruct, func() (err error) {
		instance, err = createTool(factory, params)
		return err
	}); f != nil {
		return *f
	}

	var tool []byte
	if f := r.step(PhaseSerialize, func() (err error) {
		tool, err = r.transfer(instance)
		return err
	}); f != nil {
		return *f
	}

	return Result{Success: true, Tool: tool}
}

// step runs f and converts anything it returns or throws into a failure
// tagged with phase. Go panics that are not JS exceptions propagate.
func (r *Runtime) step(phase Phase, f func() error) (fail *Result) {
	defer func() {
		x := recover()
		if x == nil {
			return
		}
		var res Result
		switch v := x.(type) {
		case *goja.Exception:
			res = r.failure(phase, v)
		case *goja.InterruptedError:
			res = r.failure(phase, v)
		case *goja.StackOverflowError:
			res = r.failure(phase, v)
		case *goja.Object:
			res = Result{Error: r.message(v), Phase: phase}
		default:
			panic(x)
		}
		fail = &res
	}()

	if err := f(); err != nil {
		res := r.failure(phase, err)
		return &res
	}
	return nil
}

func (r *Runtime) failure(phase Phase, err error) Result {
	var (
		interrupted *goja.InterruptedError
		overflow    *goja.StackOverflowError
		exc         *goja.Exception
	)

	switch {
	case errors.As(err, &interrupted):
		if errors.Is(interrupted, errDeadline) {
			return Result{
				Error: fmt.Sprintf("evaluation timed out after %s", r.config.EvalTimeout),
				Stack: interrupted.String(),
				Phase: PhaseTimeout,
			}
		}
		return Result{Error: fmt.Sprint(interrupted.Value()), Stack: interrupted.String(), Phase: phase}
	case errors.As(err, &overflow):
		return Result{Error: "maximum call stack size exceeded", Stack: overflow.String(), Phase: phase}
	case errors.As(err, &exc):
		return Result{Error: r.message(exc.Value()), Stack: exc.String(), Phase: phase}
	}
	return Result{Error: err.Error(), Phase: phase}
}

// message extracts the text a thrown value carries
func (r *Runtime) message(v goja.Value) string {
	if v == nil {
		return "unknown error"
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); !isNullish(m) {
			if s := m.String(); s != "" {
				return s
			}
		}
	}
	return v.String()
}

func (r *Runtime) armDeadline() (disarm func()) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	timer := time.AfterFunc(r.config.EvalTimeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen == gen {
			r.vm.Interrupt(errDeadline)
		}
	})

	return func() {
		timer.Stop()
		r.mu.Lock()
		r.gen++
		r.mu.Unlock()
		r.vm.ClearInterrupt()
	}
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}
