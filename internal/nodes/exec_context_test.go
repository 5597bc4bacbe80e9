package nodes

import (
	"context"
	"fmt"

	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/tagvalue"
)

// fakeExecContext is a minimal in-memory registry.ExecContext for node unit
// tests: inputs come from a plain map, queries come from canned rows keyed
// by tag id, and publishes/runtime-cache reads are recorded for assertions.
type fakeExecContext struct {
	inputs       map[string]any
	controlRows  map[string][]registry.Row
	tsdbRows     map[string][]registry.Row
	runtimeCache map[string]tagvalue.TagValue
	published    []publishedMessage
	nodeID       string
	nodeType     string

	queryErr error
}

type publishedMessage struct {
	subject string
	payload any
}

func newFakeExecContext() *fakeExecContext {
	return &fakeExecContext{
		inputs:       map[string]any{},
		controlRows:  map[string][]registry.Row{},
		tsdbRows:     map[string][]registry.Row{},
		runtimeCache: map[string]tagvalue.TagValue{},
		nodeID:       "node-1",
		nodeType:     "test",
	}
}

func (f *fakeExecContext) GetInputValue(port string) (any, bool) {
	v, ok := f.inputs[port]
	return v, ok
}

func (f *fakeExecContext) GetInputCount() int {
	return len(f.inputs)
}

func (f *fakeExecContext) Query(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(args) == 0 {
		return nil, nil
	}
	key := fmt.Sprint(args[0])
	return f.controlRows[key], nil
}

func (f *fakeExecContext) TSDBQuery(ctx context.Context, sql string, args ...any) ([]registry.Row, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(args) == 0 {
		return nil, nil
	}
	key := fmt.Sprint(args[0])
	return f.tsdbRows[key], nil
}

func (f *fakeExecContext) Publish(ctx context.Context, subject string, payload any) error {
	f.published = append(f.published, publishedMessage{subject: subject, payload: payload})
	return nil
}

func (f *fakeExecContext) RuntimeTagValue(tagID string) (tagvalue.TagValue, bool) {
	tv, ok := f.runtimeCache[tagID]
	return tv, ok
}

func (f *fakeExecContext) NodeID() string   { return f.nodeID }
func (f *fakeExecContext) NodeType() string { return f.nodeType }
