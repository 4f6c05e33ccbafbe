// Package engines provides render engine implementations
package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

var (
	errNoAdapter  = errors.New("server bundle registers no render adapter and defines no render function")
	errNoResponse = errors.New("server bundle did not deliver a rendered page")
)

var _ interfaces.RenderEngine = (*ScriptEngine)(nil)

// renderResult is what receiveRenderedPage delivers for one render id
type renderResult struct {
	html string
	err  error
}

// ScriptEngine runs the server bundle in its own goja runtime.
//
// The bundle talks to the engine in one of two ways. It may call
// registerRenderAdapter({renderPage: function(id, uri, template) {...}})
// and answer each call with receiveRenderedPage(id, html, error). Or it may
// define a global render(uri, template) returning the markup or a promise
// of it.
type ScriptEngine struct {
	id      int
	timeout time.Duration
	logger  logger.Logger

	mu       sync.Mutex
	state    types.EngineState
	vm       *goja.Runtime
	adapter  *goja.Object
	renderFn goja.Callable

	resultsMu sync.Mutex
	results   map[string]renderResult

	busy         atomic.Bool
	renders      int
	failures     int
	lastDuration time.Duration
}

// NewScriptEngine creates a stopped engine
func NewScriptEngine(id int, timeout time.Duration, log logger.Logger) *ScriptEngine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = time.Duration(types.DefaultRenderTimeout) * time.Millisecond
	}
	return &ScriptEngine{
		id:      id,
		timeout: timeout,
		logger:  log.WithComponent(fmt.Sprintf("engine-%d", id)),
		state:   types.EngineStateStopped,
	}
}

// ID returns the engine number within its pool
func (e *ScriptEngine) ID() int {
	return e.id
}

// Start evaluates the server bundle in a fresh runtime.
// Starting a running engine is a no-op.
func (e *ScriptEngine) Start(meta *types.EngineMetadata) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != types.EngineStateStopped {
		return nil
	}
	if meta == nil {
		return fmt.Errorf("engine %d: missing engine metadata", e.id)
	}

	vm := goja.New()
	e.resultsMu.Lock()
	e.results = make(map[string]renderResult)
	e.resultsMu.Unlock()

	var adapter *goja.Object
	register := func(o *goja.Object) { adapter = o }
	if err := e.installGlobals(vm, register); err != nil {
		return fmt.Errorf("engine %d: failed to install globals: %w", e.id, err)
	}

	name := meta.BundleName
	if name == "" {
		name = "server.bundle.js"
	}

	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt(types.ErrRenderTimeout)
	})
	_, err := vm.RunScript(name, meta.Bundle)
	timer.Stop()
	vm.ClearInterrupt()
	if err != nil {
		return fmt.Errorf("engine %d: failed to evaluate %s: %w", e.id, name, scriptError(err))
	}

	var renderFn goja.Callable
	if adapter == nil {
		fn, ok := goja.AssertFunction(vm.Get("render"))
		if !ok {
			return fmt.Errorf("engine %d: %w", e.id, errNoAdapter)
		}
		renderFn = fn
	}

	e.vm = vm
	e.adapter = adapter
	e.renderFn = renderFn
	e.state = types.EngineStateIdle

	e.logger.Debug("Engine started",
		logger.WithField("bundle", name),
		logger.WithField("adapter", adapter != nil))

	return nil
}

// Stop releases the runtime. A render in progress is interrupted and
// fails with ErrEngineStopped. Stopping a stopped engine is a no-op.
func (e *ScriptEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == types.EngineStateStopped {
		return nil
	}
	if e.state == types.EngineStateBusy && e.vm != nil {
		e.vm.Interrupt(types.ErrEngineStopped)
	}

	e.state = types.EngineStateStopped
	e.vm = nil
	e.adapter = nil
	e.renderFn = nil

	e.logger.Debug("Engine stopped",
		logger.WithField("renders", e.renders),
		logger.WithField("failures", e.failures))

	return nil
}

// IsWorking returns true between Start and Stop
func (e *ScriptEngine) IsWorking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != types.EngineStateStopped
}

// State returns the engine state
func (e *ScriptEngine) State() types.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns the number of renders, failures and the last render duration
func (e *ScriptEngine) Stats() (renders, failures int, last time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renders, e.failures, e.lastDuration
}

// Render renders uri with the template from meta. Every failure is an
// *types.EngineExecutionError.
func (e *ScriptEngine) Render(ctx context.Context, uri string, meta *types.EngineMetadata) (html string, err error) {
	if !e.busy.CompareAndSwap(false, true) {
		return "", &types.EngineExecutionError{URI: uri, Err: types.ErrEngineBusy}
	}
	defer e.busy.Store(false)

	e.mu.Lock()
	if e.state == types.EngineStateStopped {
		e.mu.Unlock()
		return "", &types.EngineExecutionError{URI: uri, Err: types.ErrEngineStopped}
	}
	vm := e.vm
	adapter := e.adapter
	renderFn := e.renderFn
	e.state = types.EngineStateBusy
	e.mu.Unlock()

	start := time.Now()
	defer func() {
		e.mu.Lock()
		if e.state == types.EngineStateBusy {
			e.state = types.EngineStateIdle
		}
		e.renders++
		if err != nil {
			e.failures++
		}
		e.lastDuration = time.Since(start)
		e.mu.Unlock()
	}()

	template := ""
	if meta != nil {
		template = meta.Template
	}

	// An interrupt that fires after this render finished must not reach the next one
	var interruptMu sync.Mutex
	finished := false
	interrupt := func(reason interface{}) {
		interruptMu.Lock()
		defer interruptMu.Unlock()
		if !finished {
			vm.Interrupt(reason)
		}
	}

	timer := time.AfterFunc(e.timeout, func() {
		interrupt(types.ErrRenderTimeout)
	})
	stopWatch := context.AfterFunc(ctx, func() {
		interrupt(ctx.Err())
	})
	defer func() {
		timer.Stop()
		stopWatch()
		interruptMu.Lock()
		finished = true
		vm.ClearInterrupt()
		interruptMu.Unlock()
	}()

	if adapter != nil {
		html, err = e.renderWithAdapter(vm, adapter, uri, template)
	} else {
		html, err = e.renderWithFunction(vm, renderFn, uri, template)
	}
	if err != nil {
		return "", &types.EngineExecutionError{URI: uri, Err: err}
	}
	return html, nil
}

func (e *ScriptEngine) renderWithAdapter(vm *goja.Runtime, adapter *goja.Object, uri, template string) (string, error) {
	renderPage, ok := goja.AssertFunction(adapter.Get("renderPage"))
	if !ok {
		return "", errors.New("render adapter has no renderPage function")
	}

	id := uuid.New().String()
	if _, err := renderPage(adapter, vm.ToValue(id), vm.ToValue(uri), vm.ToValue(template)); err != nil {
		e.takeResult(id)
		return "", scriptError(err)
	}

	// Promise jobs have run by the time the call returns
	result, ok := e.takeResult(id)
	if !ok {
		return "", errNoResponse
	}
	return result.html, result.err
}

func (e *ScriptEngine) renderWithFunction(vm *goja.Runtime, render goja.Callable, uri, template string) (string, error) {
	value, err := render(goja.Undefined(), vm.ToValue(uri), vm.ToValue(template))
	if err != nil {
		return "", scriptError(err)
	}

	if promise, ok := value.Export().(*goja.Promise); ok {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			value = promise.Result()
		case goja.PromiseStateRejected:
			return "", fmt.Errorf("render promise rejected: %v", promise.Result())
		default:
			return "", errNoResponse
		}
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return "", errNoResponse
	}
	return value.String(), nil
}

func (e *ScriptEngine) takeResult(id string) (renderResult, bool) {
	e.resultsMu.Lock()
	defer e.resultsMu.Unlock()
	result, ok := e.results[id]
	delete(e.results, id)
	return result, ok
}

// installGlobals exposes the render adapter protocol and a console to the bundle
func (e *ScriptEngine) installGlobals(vm *goja.Runtime, onRegister func(*goja.Object)) error {
	register := func(call goja.FunctionCall) goja.Value {
		adapter := call.Argument(0)
		if goja.IsUndefined(adapter) || goja.IsNull(adapter) {
			panic(vm.NewTypeError("registerRenderAdapter requires an adapter object"))
		}
		onRegister(adapter.ToObject(vm))
		return goja.Undefined()
	}

	receive := func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		result := renderResult{html: call.Argument(1).String()}
		if failure := call.Argument(2); !goja.IsUndefined(failure) && !goja.IsNull(failure) {
			result = renderResult{err: fmt.Errorf("bundle reported: %s", failure.String())}
		}
		e.resultsMu.Lock()
		e.results[id] = result
		e.resultsMu.Unlock()
		return goja.Undefined()
	}

	if err := vm.Set("registerRenderAdapter", register); err != nil {
		return err
	}
	if err := vm.Set("receiveRenderedPage", receive); err != nil {
		return err
	}
	return vm.Set("console", e.newConsole(vm))
}

func (e *ScriptEngine) newConsole(vm *goja.Runtime) *goja.Object {
	console := vm.NewObject()
	logTo := func(log func(string, ...logger.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]interface{}, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			log(fmt.Sprint(parts...), logger.WithField("source", "bundle"))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logTo(e.logger.Debug))
	_ = console.Set("debug", logTo(e.logger.Debug))
	_ = console.Set("info", logTo(e.logger.Info))
	_ = console.Set("warn", logTo(e.logger.Warn))
	_ = console.Set("error", logTo(e.logger.Error))
	return console
}

// scriptError unwraps interrupts into their cause
func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
	}
	return err
}
