package environment

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/distribution/reference"
	"github.com/google/uuid"

	"github.com/driftworks/stevedore/internal/flow"
	"github.com/driftworks/stevedore/internal/registry"
)

// Identifies one built image within a registry.
type ImageCoordinate struct {
	Name string // Generated image name, unique per build.
	Tag  string // Generated image tag, unique per build.
}

// Runs a flow in a Docker container.
//
// An unbuilt container environment carries a base image, registry
// coordinates, and the dependencies, files, and environment variables to
// bake into the image. Build produces the image and returns a new
// environment that references it by coordinate only; the flow lives inside
// the image from then on.
type Container struct {
	baseImage    string            // Base image reference the build starts from.
	registryURL  string            // Registry the built image is pushed to.
	dependencies []string          // pip-installable packages, installed in order.
	envVars      map[string]string // Environment variables baked into the image.
	files        map[string]string // Absolute source path to in-image destination path.
	image        *ImageCoordinate  // Set by Build. Nil while unbuilt.
	client       *registry.Client  // Daemon client. Nil connects on demand.
}

// Configures a [Container] environment.
type ContainerOptions struct {
	BaseImage          string            // Required. Must include Python 3 and pip.
	RegistryURL        string            // Registry to push the built image to.
	PythonDependencies []string          // pip packages installed during the build, in order.
	EnvVars            map[string]string // Variables added to the image via ENV.
	Files              map[string]string // Source paths (absolute) to in-image destinations.
	Image              *ImageCoordinate  // Coordinates of an already-built image, if any.
	Client             *registry.Client  // Daemon client override, mainly for tests.
}

// Creates a container environment.
//
// The base image reference and all file source paths are validated here,
// before any daemon work: a malformed reference fails with
// [ErrInvalidImage], and a relative source path fails with
// [ErrPathNotAbsolute].
func NewContainer(opts ContainerOptions) (*Container, error) {
	if opts.BaseImage == "" {
		return nil, fmt.Errorf("%w: base image is required", ErrInvalidImage)
	}
	if _, err := reference.ParseNormalizedNamed(opts.BaseImage); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidImage, opts.BaseImage, err)
	}

	var relative []string
	for src := range opts.Files {
		if !filepath.IsAbs(src) {
			relative = append(relative, src)
		}
	}
	if len(relative) > 0 {
		slices.Sort(relative)
		return nil, fmt.Errorf("%w: %v", ErrPathNotAbsolute, relative)
	}

	return &Container{
		baseImage:    opts.BaseImage,
		registryURL:  opts.RegistryURL,
		dependencies: slices.Clone(opts.PythonDependencies),
		envVars:      maps.Clone(opts.EnvVars),
		files:        maps.Clone(opts.Files),
		image:        opts.Image,
		client:       opts.Client,
	}, nil
}

// Returns the base image reference.
func (e *Container) BaseImage() string { return e.baseImage }

// Returns the registry URL.
func (e *Container) RegistryURL() string { return e.registryURL }

// Returns the ordered dependency list.
func (e *Container) PythonDependencies() []string { return slices.Clone(e.dependencies) }

// Returns the built image's coordinates, or nil while unbuilt.
func (e *Container) Image() *ImageCoordinate {
	if e.image == nil {
		return nil
	}
	img := *e.image
	return &img
}

// Returns true once the environment references a built image.
func (e *Container) Built() bool {
	return e.image != nil
}

// Controls the packaging pipeline.
type BuildOptions struct {
	Push bool // Push the built image and remove the local copy.
}

// Packages a flow into a container image, pushing it to the registry.
func (e *Container) Build(ctx context.Context, f *flow.Flow) (Environment, error) {
	return e.BuildImage(ctx, f, BuildOptions{Push: true})
}

// Packaging test hook; real builds use a fresh temp directory.
var mkBuildDir = func() (string, error) {
	return os.MkdirTemp("", "stevedore-build-")
}

// Packages a flow into a container image.
//
// A fresh image name and tag are generated for every build, so repeated
// builds never collide. The pipeline runs strictly in order: pull the base
// image, synthesize the build context, build, then optionally push and
// remove the local copy. Removal failure after a successful push is logged
// and swallowed; every other failure aborts the pipeline. The build context
// directory is removed on all exit paths.
//
// Returns a new environment carrying the image coordinates. The returned
// environment does not carry the files and environment variables; they are
// baked into the image and are not needed again.
func (e *Container) BuildImage(ctx context.Context, f *flow.Flow, opts BuildOptions) (*Container, error) {
	name := uuid.NewString()
	tag := uuid.NewString()

	client, err := e.daemon()
	if err != nil {
		return nil, err
	}

	dir, err := mkBuildDir()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildContext, err)
	}
	defer os.RemoveAll(dir)

	if err := client.Pull(ctx, e.baseImage); err != nil {
		return nil, err
	}

	if err := writeBuildContext(ctx, dir, e, f); err != nil {
		return nil, err
	}

	ref := imageRef(e.registryURL, name, tag)

	if err := client.Build(ctx, dir, ref); err != nil {
		return nil, err
	}

	if opts.Push {
		if _, err := client.Push(ctx, ref); err != nil {
			return nil, err
		}

		// Best-effort: the image already lives in the registry; keeping the
		// local copy would accumulate layers across builds.
		if err := client.Remove(ctx, ref); err != nil {
			slog.Warn("failed to remove local image copy", "ref", ref, "error", err)
		}
	}

	return &Container{
		baseImage:    e.baseImage,
		registryURL:  e.registryURL,
		dependencies: slices.Clone(e.dependencies),
		image:        &ImageCoordinate{Name: name, Tag: tag},
		client:       e.client,
	}, nil
}

// Starts a detached container running the flow baked into the image.
//
// The container's command invokes the in-image stevedore runner against the
// embedded environment file. The returned state is Submitted and carries
// the container ID; result retrieval (logs, attach) is the caller's
// concern.
func (e *Container) Run(ctx context.Context, opts flow.RunOptions) (*flow.State, error) {
	if !e.Built() {
		return nil, fmt.Errorf("%w: container environment has no image coordinates", ErrNotBuilt)
	}

	client, err := e.daemon()
	if err != nil {
		return nil, err
	}

	ref := imageRef(e.registryURL, e.image.Name, e.image.Tag)

	id, err := client.StartContainer(ctx, ref, runnerCommand())
	if err != nil {
		return nil, err
	}

	return &flow.State{Status: flow.StatusSubmitted, Message: id}, nil
}

// Returns the environment as a plain JSON-compatible mapping.
func (e *Container) Serialize() (map[string]any, error) {
	return serialize(e.wire())
}

// Returns the configured daemon client, connecting to the default socket
// when none was injected.
func (e *Container) daemon() (*registry.Client, error) {
	if e.client != nil {
		return e.client, nil
	}

	client, err := registry.New("")
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

// Formats a fully-qualified image reference.
func imageRef(registryURL, name, tag string) string {
	return path.Join(registryURL, name) + ":" + tag
}

// The command a launched container runs: the in-image runner against the
// embedded environment file. The shell expands the path variable written
// into the image at build time.
func runnerCommand() []string {
	return []string{"/bin/sh", "-c", `stevedore run "$` + EnvFileVariable + `"`}
}
