package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/driftworks/stevedore/internal/environment"
	"github.com/driftworks/stevedore/internal/flow"
	"github.com/driftworks/stevedore/internal/paths"
)

// Represents the 'stevedore build' command.
type BuildCmd struct {
	Flow      string            `arg:"" help:"Path to a flow definition file." type:"existingfile"`
	BaseImage string            `help:"Base image for the container. Must include Python 3 and pip." default:"python:3.7"`
	Registry  string            `help:"Registry URL to push the built image to." required:""`
	Dep       []string          `help:"pip package to install into the image. Repeatable, installed in order."`
	Env       map[string]string `help:"Environment variable to bake into the image."`
	File      map[string]string `help:"Auxiliary file to copy into the image, as absolute-src=dest."`
	NoPush    bool              `help:"Build without pushing; the local image is kept."`
	Output    string            `help:"Where to write the built environment descriptor." placeholder:"PATH"`
}

// Executes the build command.
//
// Packages the flow into a container image and writes the resulting
// environment descriptor, which 'stevedore run' (or any embedder) can use
// to start the flow in a container later.
func (c *BuildCmd) Run(ctx context.Context) error {
	f, err := flow.FromFile(c.Flow)
	if err != nil {
		return err
	}

	env, err := environment.NewContainer(environment.ContainerOptions{
		BaseImage:          c.BaseImage,
		RegistryURL:        c.Registry,
		PythonDependencies: c.Dep,
		EnvVars:            c.Env,
		Files:              c.File,
	})
	if err != nil {
		return err
	}

	built, err := env.BuildImage(ctx, f, environment.BuildOptions{Push: !c.NoPush})
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		if err := os.MkdirAll(paths.Data(), paths.DefaultDirMode); err != nil {
			return err
		}
		output = paths.Descriptor(f.Name)
	}

	if err := environment.ToFile(built, output); err != nil {
		return err
	}

	image := built.Image()
	slog.Info("environment built",
		"flow", f.Name,
		"image", image.Name,
		"tag", image.Tag,
		"descriptor", output,
	)

	return nil
}
