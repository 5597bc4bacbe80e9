package scan

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/tagflow/engine/internal/executor"
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/obslog"
)

// CronTrigger runs a flow once per schedule entry in flow.Document's
// TriggerSchedule field, for flows driven by a schedule trigger node rather
// than the fixed-period scan loop.
type CronTrigger struct {
	sched *cron.Cron
	exec  *executor.Executor
	log   *obslog.Logger
}

// NewCronTrigger builds a cron trigger bound to exec. Call Add for each
// scheduled flow, then Start.
func NewCronTrigger(exec *executor.Executor, log *obslog.Logger) *CronTrigger {
	return &CronTrigger{
		sched: cron.New(cron.WithSeconds()),
		exec:  exec,
		log:   log,
	}
}

// Add registers doc to run once whenever doc.TriggerSchedule fires. It is a
// no-op when TriggerSchedule is empty.
func (c *CronTrigger) Add(doc *flow.Document) error {
	if doc.TriggerSchedule == "" {
		return nil
	}
	triggerID := scheduleTriggerNodeID(doc)
	_, err := c.sched.AddFunc(doc.TriggerSchedule, func() {
		ctx := context.Background()
		if _, err := c.exec.Run(ctx, doc, triggerID); err != nil {
			c.log.Error(ctx, err, "scan: scheduled run failed")
		}
	})
	return err
}

// Start begins dispatching scheduled runs in the background.
func (c *CronTrigger) Start() { c.sched.Start() }

// Stop halts dispatch, waiting for any in-flight job to finish.
func (c *CronTrigger) Stop() { <-c.sched.Stop().Done() }

func scheduleTriggerNodeID(doc *flow.Document) string {
	for _, n := range doc.Nodes {
		if n.Type == "schedule" {
			return n.ID
		}
	}
	return ""
}
