package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftworks/stevedore/internal/environment"
	"github.com/driftworks/stevedore/internal/flow"
)

// Represents the 'stevedore run' command.
//
// This is the entry point used inside built container images: the container
// command invokes it against the embedded environment file named by
// STEVEDORE_ENVIRONMENT_FILE.
type RunCmd struct {
	Path string `arg:"" help:"Path to a serialized environment file." type:"existingfile"`
}

// Executes the run command.
//
// Loads the environment descriptor, runs the flow it describes, and reports
// the final state. A failed flow run returns an error so the process exits
// non-zero.
func (c *RunCmd) Run(ctx context.Context) error {
	env, err := environment.FromFile(c.Path)
	if err != nil {
		return err
	}

	state, err := env.Run(ctx, flow.RunOptions{})
	if err != nil {
		return err
	}

	slog.Info("flow run finished", "status", state.Status, "message", state.Message)

	if state.Status == flow.StatusFailed {
		return fmt.Errorf("flow run failed: %s", state.Message)
	}

	return nil
}
