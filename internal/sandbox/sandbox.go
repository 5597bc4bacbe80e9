// Package sandbox runs user-authored scripts inside a fresh, isolated goja
// VM per execution. The global scope exposed to a script is a closed set:
// $input, $tags, $flow, $fs, console, and whatever goja's JS runtime wires
// up natively (Math, JSON, Date, RegExp). Module loading, process control,
// timers, and native buffers are never set on the VM, so a script cannot
// reach anything beyond the capabilities it is handed.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/tagflow/engine/internal/flowerr"
)

const (
	defaultTimeout = 10 * time.Second
	maxTimeout     = 60 * time.Second
)

// TagReading is a single point returned by Tags.Get/History.
type TagReading struct {
	Value     any       `json:"value"`
	Quality   uint8     `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// Tags is the capability backing $tags inside a script.
type Tags interface {
	Get(path string) (TagReading, error)
	History(path string, window time.Duration) ([]TagReading, error)
}

// FlowState is the capability backing $flow.state inside a script.
type FlowState interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// FS is the capability backing $fs inside a script. Implementations enforce
// the allow-listed roots and size caps; the sandbox itself does not know
// about the filesystem.
type FS interface {
	ReadFile(path string) (string, error)
	WriteFile(path string, content string) error
	Exists(path string) (bool, error)
	ReadDir(path string) ([]string, error)
}

// Capabilities bundles everything a script execution is allowed to touch.
// Nil fields are simply absent from the VM's global scope: a script that
// references $tags when Tags is nil gets a ReferenceError, not a panic.
type Capabilities struct {
	Tags      Tags
	FlowState FlowState
	FS        FS
	Audit     *AuditLog
}

// ScriptError mirrors a JS error thrown out of the entry point, shaped so
// callers can surface it without caring whether it originated from a goja
// exception or a Go-side capability error.
type ScriptError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// Result is the outcome of a single script execution.
type Result struct {
	Value any          `json:"result"`
	Logs  []string     `json:"logs"`
	Error *ScriptError `json:"error,omitempty"`
}

// Request describes one script invocation.
type Request struct {
	Script     string
	EntryPoint string
	Input      any
	Timeout    time.Duration
}

// Sandbox evaluates scripts. It holds no per-execution state: every Run
// call gets a brand-new goja VM, so concurrent executions never share
// mutable JS state.
type Sandbox struct{}

func New() *Sandbox {
	return &Sandbox{}
}

// Run executes req.Script in a fresh VM, invokes req.EntryPoint with
// req.Input, and returns the exported result, captured console output, and
// any script-level error. A Go-side error is returned only for conditions
// the caller configured wrong (bad entry point, compile failure) and for a
// run stopped by the time budget or by ctx cancellation — a
// runtime exception thrown by the script itself is reported inside Result,
// not as a Go error, so a misbehaving script can't abort the caller's
// control flow.
func (s *Sandbox) Run(ctx context.Context, req Request, caps Capabilities) (Result, error) {
	timeout := clampTimeout(req.Timeout)

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	logs := make([]string, 0)

	if err := setupConsole(vm, &logs); err != nil {
		return Result{}, err
	}
	if err := setupInput(vm, req.Input); err != nil {
		return Result{}, err
	}
	setupTags(vm, caps.Tags, caps.Audit)
	setupFlowState(vm, caps.FlowState, caps.Audit)
	setupFS(vm, caps.FS, caps.Audit)

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt(fmt.Errorf("script exceeded %s time budget", timeout))
	})
	defer timer.Stop()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	defer close(done)

	if _, err := vm.RunString(req.Script); err != nil {
		if time.Now().After(deadline) {
			return Result{Logs: logs}, flowerr.New(flowerr.Fatal, "script timed out while loading")
		}
		return Result{}, flowerr.Wrap(flowerr.Validation, err, "compile script")
	}

	entryPoint, ok := goja.AssertFunction(vm.Get(req.EntryPoint))
	if !ok {
		return Result{}, flowerr.Newf(flowerr.Validation, "entry point %q is not a function", req.EntryPoint)
	}

	resultVal, callErr := entryPoint(goja.Undefined(), vm.Get("$input"))
	if callErr != nil {
		if ex, ok := callErr.(*goja.Exception); ok {
			return Result{Logs: logs, Error: scriptErrorFromException(ex)}, nil
		}
		return Result{Logs: logs}, flowerr.Wrap(flowerr.Fatal, callErr, "execute script")
	}

	return Result{Value: exportResult(resultVal), Logs: logs}, nil
}

func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}

func setupConsole(vm *goja.Runtime, logs *[]string) error {
	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}
		*logs = append(*logs, fmt.Sprintln(args...))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(name, logFn); err != nil {
			return flowerr.Wrap(flowerr.Fatal, err, "bind console."+name)
		}
	}
	return vm.Set("console", console)
}

func setupInput(vm *goja.Runtime, input any) error {
	return vm.Set("$input", vm.ToValue(input))
}

func setupTags(vm *goja.Runtime, tags Tags, audit *AuditLog) {
	if tags == nil {
		return
	}
	obj := vm.NewObject()
	_ = obj.Set("get", func(path string) goja.Value {
		reading, err := tags.Get(path)
		recordAudit(audit, "tags", "get", err == nil, path)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(reading)
	})
	_ = obj.Set("history", func(path string, windowMS int64) goja.Value {
		readings, err := tags.History(path, time.Duration(windowMS)*time.Millisecond)
		recordAudit(audit, "tags", "history", err == nil, path)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(readings)
	})
	_ = vm.Set("$tags", obj)
}

func setupFlowState(vm *goja.Runtime, state FlowState, audit *AuditLog) {
	if state == nil {
		return
	}
	stateObj := vm.NewObject()
	_ = stateObj.Set("get", func(key string) goja.Value {
		v, ok := state.Get(key)
		recordAudit(audit, "flow.state", "get", true, key)
		if !ok {
			return goja.Undefined()
		}
		return vm.ToValue(v)
	})
	_ = stateObj.Set("set", func(key string, value goja.Value) {
		state.Set(key, exportResult(value))
		recordAudit(audit, "flow.state", "set", true, key)
	})
	flowObj := vm.NewObject()
	_ = flowObj.Set("state", stateObj)
	_ = vm.Set("$flow", flowObj)
}

func setupFS(vm *goja.Runtime, fs FS, audit *AuditLog) {
	if fs == nil {
		return
	}
	obj := vm.NewObject()
	_ = obj.Set("readFile", func(path string) goja.Value {
		content, err := fs.ReadFile(path)
		recordAudit(audit, "fs", "readFile", err == nil, path)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(content)
	})
	_ = obj.Set("writeFile", func(path string, content string) {
		err := fs.WriteFile(path, content)
		recordAudit(audit, "fs", "writeFile", err == nil, path)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
	})
	_ = obj.Set("exists", func(path string) goja.Value {
		ok, err := fs.Exists(path)
		recordAudit(audit, "fs", "exists", err == nil, path)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(ok)
	})
	_ = obj.Set("readdir", func(path string) goja.Value {
		entries, err := fs.ReadDir(path)
		recordAudit(audit, "fs", "readdir", err == nil, path)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(entries)
	})
	_ = vm.Set("$fs", obj)
}

func recordAudit(audit *AuditLog, capability, action string, allowed bool, detail string) {
	if audit == nil {
		return
	}
	audit.Record(capability, action, allowed, detail)
}

func scriptErrorFromException(ex *goja.Exception) *ScriptError {
	val := ex.Value()
	if obj, ok := val.(*goja.Object); ok {
		return &ScriptError{
			Name:    exportString(obj.Get("name")),
			Message: exportString(obj.Get("message")),
			Stack:   exportString(obj.Get("stack")),
		}
	}
	return &ScriptError{Name: "Error", Message: ex.Error()}
}

func exportString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return ""
	}
	return v.String()
}

func exportResult(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	exported := v.Export()
	switch exported.(type) {
	case string, float64, bool:
		return exported
	default:
		raw, err := json.Marshal(exported)
		if err != nil {
			return exported
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return exported
		}
		return out
	}
}

// Validate compiles script without executing it, the same check the editor
// runs before a flow is saved.
func Validate(script string) error {
	if _, err := goja.Compile("script.js", script, false); err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "compile script")
	}
	return nil
}
