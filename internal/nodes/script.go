package nodes

import (
	"context"
	"time"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/sandbox"
	"github.com/tagflow/engine/internal/tagvalue"
)

const (
	defaultScriptTimeoutMS = 10_000
	maxScriptTimeoutMS     = 60_000
)

// FlowStateProvider is implemented by an ExecContext that can back a
// script's $flow.state capability. Optional: an ExecContext that doesn't
// implement it simply leaves $flow.state unset for scripts it drives.
type FlowStateProvider interface {
	ScriptFlowState() sandbox.FlowState
}

// FSProvider is implemented by an ExecContext that can back a script's
// $fs capability. Optional, same rationale as FlowStateProvider.
type FSProvider interface {
	ScriptFS() sandbox.FS
}

// Script evaluates a user-authored JS function inside internal/sandbox,
// with $tags backed by the execution context's runtime cache and
// time-series store, and $flow.state/$fs wired in only when the context
// opts in.
type Script struct {
	Source     string
	EntryPoint string
	TimeoutMS  int64

	sandbox *sandbox.Sandbox
	logs    []string
}

func NewScript() registry.Instance {
	return &Script{EntryPoint: "main", TimeoutMS: defaultScriptTimeoutMS, sandbox: sandbox.New()}
}

func (s *Script) Description() registry.Description {
	return registry.Description{
		SchemaVersion: 1,
		Name:          "script",
		DisplayName:   "Script",
		Version:       "1.0.0",
		Category:      "logic",
		Inputs:        []registry.Port{{Name: "input", Type: registry.TypeAny}},
		Outputs:       []registry.Port{{Name: "output", Type: registry.TypeAny}},
		Properties: []registry.Property{
			{Name: "script", Type: "string", Required: true},
			{Name: "entryPoint", Type: "string", DefaultValue: "main"},
			{Name: "timeoutMs", Type: "number", DefaultValue: defaultScriptTimeoutMS},
		},
	}
}

func (s *Script) Configure(data map[string]any) error {
	script, _ := data["script"].(string)
	if script == "" {
		return flowerr.New(flowerr.Validation, "script: source is required")
	}
	s.Source = script
	if ep, ok := data["entryPoint"].(string); ok && ep != "" {
		s.EntryPoint = ep
	}
	if ms, ok := numberProperty(data["timeoutMs"]); ok {
		s.TimeoutMS = int64(ms)
	}
	return sandbox.Validate(s.Source)
}

func (s *Script) GetLogMessages() []string {
	return s.logs
}

func (s *Script) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	input, _ := ectx.GetInputValue("input")

	caps := sandbox.Capabilities{
		Tags: tagsCapability{ctx: ctx, ectx: ectx},
	}
	if provider, ok := ectx.(FlowStateProvider); ok {
		caps.FlowState = provider.ScriptFlowState()
	}
	if provider, ok := ectx.(FSProvider); ok {
		caps.FS = provider.ScriptFS()
	}

	timeout := time.Duration(s.TimeoutMS) * time.Millisecond
	if timeout <= 0 || timeout > maxScriptTimeoutMS*time.Millisecond {
		timeout = defaultScriptTimeoutMS * time.Millisecond
	}

	res, err := s.sandbox.Run(ctx, sandbox.Request{
		Script:     s.Source,
		EntryPoint: s.EntryPoint,
		Input:      input,
		Timeout:    timeout,
	}, caps)
	if err != nil {
		return registry.Result{}, flowerr.Wrap(flowerr.Fatal, err, "script").WithNode(ectx.NodeID())
	}

	s.logs = res.Logs
	if res.Error != nil {
		return registry.Result{}, flowerr.Newf(flowerr.Fatal, "script: %s: %s", res.Error.Name, res.Error.Message).WithNode(ectx.NodeID())
	}

	return registry.Result{Value: res.Value}, nil
}

// tagsCapability adapts an ExecContext's runtime cache and time-series
// store into the sandbox.Tags capability a Script node exposes as $tags.
type tagsCapability struct {
	ctx  context.Context
	ectx registry.ExecContext
}

func (c tagsCapability) Get(path string) (sandbox.TagReading, error) {
	if tv, ok := c.ectx.RuntimeTagValue(path); ok {
		return sandbox.TagReading{Value: tv.Value.Raw(), Quality: uint8(tv.Quality), Timestamp: tv.EffectiveTimestamp()}, nil
	}
	rows, err := c.ectx.TSDBQuery(c.ctx, "SELECT ts, quality, v_num, v_text, v_json FROM tag_values WHERE tag_path = $1 ORDER BY ts DESC LIMIT 1", path)
	if err != nil {
		return sandbox.TagReading{}, err
	}
	if len(rows) == 0 {
		return sandbox.TagReading{}, flowerr.Newf(flowerr.NotFound, "tag %q has no stored value", path)
	}
	tv, err := tagvalue.Decode(storedRowFromRow(rows[0]))
	if err != nil {
		return sandbox.TagReading{}, err
	}
	return sandbox.TagReading{Value: tv.Value.Raw(), Quality: uint8(tv.Quality), Timestamp: tv.EffectiveTimestamp()}, nil
}

func (c tagsCapability) History(path string, window time.Duration) ([]sandbox.TagReading, error) {
	since := time.Now().Add(-window)
	rows, err := c.ectx.TSDBQuery(c.ctx, "SELECT ts, quality, v_num, v_text, v_json FROM tag_values WHERE tag_path = $1 AND ts >= $2 ORDER BY ts", path, since)
	if err != nil {
		return nil, err
	}
	readings := make([]sandbox.TagReading, 0, len(rows))
	for _, row := range rows {
		tv, err := tagvalue.Decode(storedRowFromRow(row))
		if err != nil {
			continue
		}
		readings = append(readings, sandbox.TagReading{Value: tv.Value.Raw(), Quality: uint8(tv.Quality), Timestamp: tv.EffectiveTimestamp()})
	}
	return readings, nil
}
