package flow

import (
	"encoding/json"
	"fmt"
	"os"
)

// A unit of work that can be packaged and executed by an environment.
//
// Flows carry no executable code. Each task names a registered action, and
// the process that ultimately runs the flow resolves those names against its
// own action registry. This keeps flows serializable across process and
// image boundaries.
type Flow struct {
	Name       string            `json:"name" cbor:"name"`
	Tasks      []Task            `json:"tasks" cbor:"tasks"`
	Parameters map[string]string `json:"parameters,omitempty" cbor:"parameters,omitempty"`
}

// A single step of a flow.
//
// DependsOn lists the names of tasks that must complete before this one
// runs. With provides task-level arguments that override flow parameters.
type Task struct {
	Name      string            `json:"name" cbor:"name"`
	Action    string            `json:"action" cbor:"action"`
	With      map[string]string `json:"with,omitempty" cbor:"with,omitempty"`
	DependsOn []string          `json:"depends_on,omitempty" cbor:"depends_on,omitempty"`
}

// Checks that the flow is structurally sound.
//
// Task names must be unique, every action must be non-empty, and every
// dependency must refer to a task declared earlier in the list. Declaration
// order is the execution order, so forward dependencies are rejected rather
// than re-sorted.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: flow has no name", ErrInvalidFlow)
	}

	seen := make(map[string]bool, len(f.Tasks))
	for i, t := range f.Tasks {
		if t.Name == "" {
			return fmt.Errorf("%w: task %d has no name", ErrInvalidFlow, i+1)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate task %q", ErrInvalidFlow, t.Name)
		}
		if t.Action == "" {
			return fmt.Errorf("%w: task %q has no action", ErrInvalidFlow, t.Name)
		}
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("%w: task %q depends on %q, which is not declared before it", ErrInvalidFlow, t.Name, dep)
			}
		}
		seen[t.Name] = true
	}

	return nil
}

// Loads a flow definition from a JSON file.
func FromFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}

	var f Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}
