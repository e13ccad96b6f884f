package environment

import (
	"context"

	"github.com/driftworks/stevedore/internal/flow"
)

const (

	// Filename of the serialized local environment inside a build context
	// and inside the image's config directory.
	EnvironmentFileName = "flow_env.stevedore"

	// Config directory created inside built images.
	ImageConfigDir = "/root/.stevedore"

	// In-image path of the embedded environment file.
	ImageEnvironmentFile = ImageConfigDir + "/" + EnvironmentFileName

	// In-image path of the user config file.
	ImageUserConfigFile = ImageConfigDir + "/config.toml"

	// Environment variable naming the in-image environment file, so the
	// in-container runner can locate it without hardcoding the path.
	EnvFileVariable = "STEVEDORE_ENVIRONMENT_FILE"

	// Environment variable naming the in-image user config file.
	UserConfigVariable = "STEVEDORE_USER_CONFIG_PATH"

	// Process environment variable holding the access token used to fetch
	// the stevedore runtime into the image at build time.
	AccessTokenVariable = "STEVEDORE_ACCESS_TOKEN"
)

// Describes how and where to run a flow.
//
// An environment may be created with a subset of its ultimate required
// information; the rest, including the flow itself, is supplied when Build
// is called. Build returns a new, fully-specified environment and never
// mutates its receiver. Run executes the flow in the environment's target
// runtime; calling Run on an environment that was never built fails with
// [ErrNotBuilt].
type Environment interface {
	// Completes the environment for a specific flow. Returns a new
	// environment; the receiver is unchanged.
	Build(ctx context.Context, f *flow.Flow) (Environment, error)

	// Runs the flow represented by this environment.
	Run(ctx context.Context, opts flow.RunOptions) (*flow.State, error)

	// Returns the environment as a plain JSON-compatible mapping.
	Serialize() (map[string]any, error)
}
