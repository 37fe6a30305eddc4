package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"apogee/internal/jobqueue"
)

// Registrar accepts job bindings. Satisfied by the jobqueue worker runner
// and by in-process test executors.
type Registrar interface {
	Register(name string, fn jobqueue.JobFunc)
}

var _ Registrar = (*jobqueue.Runner)(nil)

// Register binds every agent to its job name on the registrar.
func (a *Agents) Register(r Registrar) {
	r.Register(JobMineTopics, handler(a.MineTopics))
	r.Register(JobResearchTopic, handler(a.ResearchTopic))
	r.Register(JobWriteScript, handler(a.WriteScript))
	r.Register(JobCheckScript, handler(a.CheckScript))
}

// handler adapts a typed agent method to the runner's JobFunc shape.
func handler[P any, R any](fn func(context.Context, P) (R, error)) jobqueue.JobFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var decoded P
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &decoded); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
		}
		return fn(ctx, decoded)
	}
}
