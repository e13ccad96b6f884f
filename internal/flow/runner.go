package flow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
)

// Execution outcome of a flow run.
type Status string

const (
	StatusPending   Status = "Pending"   // The run has not started.
	StatusSubmitted Status = "Submitted" // The run was handed off to another runtime.
	StatusSuccess   Status = "Success"   // All tasks completed.
	StatusFailed    Status = "Failed"    // A task failed; remaining tasks were skipped.
)

// Result of executing a flow.
type State struct {
	Status  Status            // Terminal status of the run.
	Message string            // Human-readable detail (failure cause, container ID).
	Results map[string]string // Per-task outputs, keyed by task name.
}

// Returns true if the run completed successfully.
func (s *State) Successful() bool {
	return s.Status == StatusSuccess
}

// Caller-supplied options forwarded to a runner.
type RunOptions struct {
	Parameters map[string]string // Overrides for the flow's declared parameters.
}

// Executes a flow and reports its final state.
//
// Runners are constructed per flow by a [RunnerFactory]. Environments hold
// a factory rather than looking one up from process-wide state, so tests
// and embedders can substitute their own engine.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*State, error)
}

// Constructs a runner for a flow.
type RunnerFactory func(f *Flow) Runner

// The built-in sequential engine.
//
// Tasks execute in declaration order. A task runs only when all of its
// dependencies have completed; since Validate rejects forward dependencies,
// declaration order is always a valid schedule. The first task failure stops
// the run.
type TaskRunner struct {
	flow *Flow
}

// Creates a [TaskRunner] for the given flow. Satisfies [RunnerFactory].
func NewTaskRunner(f *Flow) Runner {
	return &TaskRunner{flow: f}
}

// Runs the flow's tasks in order.
//
// Effective task arguments are the flow parameters, overlaid with the
// caller's parameter overrides, overlaid with the task's own arguments.
// A task whose action is not registered fails the run.
func (r *TaskRunner) Run(ctx context.Context, opts RunOptions) (*State, error) {
	if err := r.flow.Validate(); err != nil {
		return nil, err
	}

	params := make(map[string]string, len(r.flow.Parameters)+len(opts.Parameters))
	maps.Copy(params, r.flow.Parameters)
	maps.Copy(params, opts.Parameters)

	results := make(map[string]string, len(r.flow.Tasks))

	for _, task := range r.flow.Tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		action, ok := LookupAction(task.Action)
		if !ok {
			return &State{
				Status:  StatusFailed,
				Message: fmt.Sprintf("task %q: action %q is not registered", task.Name, task.Action),
				Results: results,
			}, nil
		}

		with := make(map[string]string, len(params)+len(task.With))
		maps.Copy(with, params)
		maps.Copy(with, task.With)

		slog.Debug("running task", "flow", r.flow.Name, "task", task.Name, "action", task.Action)

		out, err := action(ctx, with)
		if err != nil {
			return &State{
				Status:  StatusFailed,
				Message: fmt.Sprintf("task %q: %v", task.Name, err),
				Results: results,
			}, nil
		}
		results[task.Name] = out
	}

	return &State{Status: StatusSuccess, Results: results}, nil
}
