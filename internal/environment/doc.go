// Package environment packages flows for execution in a target runtime.
//
// An [Environment] fully describes how to run a flow. Some of the required
// information, notably the flow itself, may be unknown when the descriptor
// is created, so environments are built in two phases: construct with
// partial information, then call Build with the flow to obtain a new,
// fully-specified environment. Build never mutates; Run on an environment
// that was never built fails with [ErrNotBuilt].
//
// [Local] holds the flow as an encrypted payload and runs it in-process.
// [Container] packages a flow into a Docker image: the base image is
// pulled, a build context is synthesized (Dockerfile, staged auxiliary
// files, and a serialized Local environment), the image is built with a
// generated name and tag, pushed, and the local copy removed. Running the
// built environment starts a detached container whose entry command hands
// the embedded Local environment to the in-image stevedore runner, so the
// container ultimately runs the flow through the same Local path.
//
// Descriptors serialize to JSON envelopes tagged with their variant and can
// be persisted with [ToFile] and reconstituted with [FromFile], including
// inside a container built from them.
//
// Example usage:
//
//	env, err := environment.NewContainer(environment.ContainerOptions{
//	    BaseImage:          "python:3.7",
//	    RegistryURL:        "registry.example.com/flows",
//	    PythonDependencies: []string{"requests"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	built, err := env.Build(ctx, f)
//	if err != nil {
//	    return err
//	}
//
//	state, err := built.Run(ctx, flow.RunOptions{})
package environment
