package environment

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/driftworks/stevedore/internal/flow"
	"github.com/driftworks/stevedore/internal/registry"
)

// Scripted daemon API recording the pipeline's calls.
type fakeAPI struct {
	calls     []string
	buildErr  error
	pushErr   error
	removeErr error
	createID  string
	created   *container.Config
}

func (f *fakeAPI) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	f.calls = append(f.calls, "pull")
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeAPI) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.calls = append(f.calls, "build")
	if f.buildErr != nil {
		return types.ImageBuildResponse{}, f.buildErr
	}
	io.Copy(io.Discard, buildContext)
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(""))}, nil
}

func (f *fakeAPI) ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error) {
	f.calls = append(f.calls, "push")
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeAPI) ImageRemove(ctx context.Context, ref string, options image.RemoveOptions) ([]image.DeleteResponse, error) {
	f.calls = append(f.calls, "remove")
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	return nil, nil
}

func (f *fakeAPI) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.calls = append(f.calls, "create")
	f.created = config
	id := f.createID
	if id == "" {
		id = "c0ffee"
	}
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.calls = append(f.calls, "start")
	return nil
}

func fakeClient(t *testing.T, api registry.API) *registry.Client {
	t.Helper()
	c, err := registry.New("", registry.WithAPI(api), registry.WithObserver(registry.Discard()))
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return c
}

func unbuiltContainer(t *testing.T, api registry.API) *Container {
	t.Helper()
	env, err := NewContainer(ContainerOptions{
		BaseImage:          "python:3.7",
		RegistryURL:        "myrepo",
		PythonDependencies: []string{"requests"},
		Client:             fakeClient(t, api),
	})
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	return env
}

func TestNewContainerRejectsRelativeFilePaths(t *testing.T) {
	_, err := NewContainer(ContainerOptions{
		BaseImage: "python:3.7",
		Files:     map[string]string{"relative/path.txt": "/app/path.txt"},
	})
	if !errors.Is(err, ErrPathNotAbsolute) {
		t.Fatalf("NewContainer() = %v, want ErrPathNotAbsolute", err)
	}
}

func TestNewContainerAcceptsAbsoluteFilePaths(t *testing.T) {
	_, err := NewContainer(ContainerOptions{
		BaseImage: "python:3.7",
		Files: map[string]string{
			"/abs/one.txt": "/app/one.txt",
			"/abs/two.txt": "/app/two.txt",
		},
	})
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
}

func TestNewContainerRejectsMalformedBaseImage(t *testing.T) {
	_, err := NewContainer(ContainerOptions{BaseImage: "Not A Reference!!"})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("NewContainer() = %v, want ErrInvalidImage", err)
	}
}

func TestContainerRunUnbuilt(t *testing.T) {
	env := unbuiltContainer(t, &fakeAPI{})

	if _, err := env.Run(context.Background(), flow.RunOptions{}); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("Run() = %v, want ErrNotBuilt", err)
	}
}

func TestBuildPipelineOrder(t *testing.T) {
	api := &fakeAPI{}
	env := unbuiltContainer(t, api)

	built, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{Push: true})
	if err != nil {
		t.Fatalf("BuildImage() error = %v", err)
	}

	want := []string{"pull", "build", "push", "remove"}
	if len(api.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", api.calls, want)
	}
	for i := range want {
		if api.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", api.calls, want)
		}
	}

	if !built.Built() {
		t.Fatal("built environment reports unbuilt")
	}
	img := built.Image()
	if img.Name == "" || img.Tag == "" {
		t.Fatalf("image coordinate = %+v, want generated name and tag", img)
	}
}

func TestBuildWithoutPushSkipsRemoval(t *testing.T) {
	api := &fakeAPI{}
	env := unbuiltContainer(t, api)

	built, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{Push: false})
	if err != nil {
		t.Fatalf("BuildImage() error = %v", err)
	}

	for _, call := range api.calls {
		if call == "push" || call == "remove" {
			t.Fatalf("daemon call %q issued for a push=false build: %v", call, api.calls)
		}
	}

	if !built.Built() {
		t.Fatal("built environment reports unbuilt")
	}
	if built.BaseImage() != "python:3.7" || built.RegistryURL() != "myrepo" {
		t.Fatalf("coordinates changed: %q %q", built.BaseImage(), built.RegistryURL())
	}
	deps := built.PythonDependencies()
	if len(deps) != 1 || deps[0] != "requests" {
		t.Fatalf("dependencies = %v, want [requests]", deps)
	}
}

func TestBuildGeneratesFreshCoordinates(t *testing.T) {
	env := unbuiltContainer(t, &fakeAPI{})

	first, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if first.Image().Name == second.Image().Name {
		t.Fatal("two builds share an image name")
	}
	if first.Image().Tag == second.Image().Tag {
		t.Fatal("two builds share an image tag")
	}
}

func TestBuildRemoveFailureIsSwallowed(t *testing.T) {
	api := &fakeAPI{removeErr: errors.New("image in use")}
	env := unbuiltContainer(t, api)

	if _, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{Push: true}); err != nil {
		t.Fatalf("BuildImage() error = %v, want removal failure swallowed", err)
	}
}

func TestBuildPushFailureIsFatal(t *testing.T) {
	api := &fakeAPI{pushErr: errors.New("denied")}
	env := unbuiltContainer(t, api)

	if _, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{Push: true}); err == nil {
		t.Fatal("BuildImage() succeeded despite push failure")
	}
}

func TestBuildCleansUpContextOnFailure(t *testing.T) {
	var dir string
	orig := mkBuildDir
	mkBuildDir = func() (string, error) {
		d, err := os.MkdirTemp("", "stevedore-test-build-")
		dir = d
		return d, err
	}
	defer func() { mkBuildDir = orig }()

	api := &fakeAPI{buildErr: errors.New("daemon exploded")}
	env := unbuiltContainer(t, api)

	if _, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{}); err == nil {
		t.Fatal("BuildImage() succeeded despite build failure")
	}

	if dir == "" {
		t.Fatal("build directory hook never fired")
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("build directory %s still exists after failed build", dir)
	}
}

func TestBuiltDescriptorDropsFilesAndEnvVars(t *testing.T) {
	src := writeTempFile(t, "payload")

	api := &fakeAPI{}
	env, err := NewContainer(ContainerOptions{
		BaseImage:   "python:3.7",
		RegistryURL: "myrepo",
		EnvVars:     map[string]string{"MODE": "prod"},
		Files:       map[string]string{src: "/app/payload.txt"},
		Client:      fakeClient(t, api),
	})
	if err != nil {
		t.Fatal(err)
	}

	built, err := env.BuildImage(context.Background(), testFlow(), BuildOptions{Push: true})
	if err != nil {
		t.Fatalf("BuildImage() error = %v", err)
	}

	m, err := built.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if _, ok := m["env_vars"]; ok {
		t.Fatal("built descriptor still carries env_vars")
	}
	if _, ok := m["files"]; ok {
		t.Fatal("built descriptor still carries files")
	}
	if m["image_name"] == "" || m["image_tag"] == "" {
		t.Fatalf("built descriptor missing coordinates: %v", m)
	}
}

func TestContainerRunStartsDetachedContainer(t *testing.T) {
	api := &fakeAPI{createID: "deadbeef"}
	env, err := NewContainer(ContainerOptions{
		BaseImage:   "python:3.7",
		RegistryURL: "myrepo",
		Image:       &ImageCoordinate{Name: "img", Tag: "tag"},
		Client:      fakeClient(t, api),
	})
	if err != nil {
		t.Fatal(err)
	}

	state, err := env.Run(context.Background(), flow.RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Status != flow.StatusSubmitted {
		t.Fatalf("status = %q, want %q", state.Status, flow.StatusSubmitted)
	}
	if state.Message != "deadbeef" {
		t.Fatalf("message = %q, want container ID", state.Message)
	}

	if api.created.Image != "myrepo/img:tag" {
		t.Fatalf("container image = %q, want myrepo/img:tag", api.created.Image)
	}
	cmd := strings.Join(api.created.Cmd, " ")
	if !strings.Contains(cmd, "stevedore run") || !strings.Contains(cmd, EnvFileVariable) {
		t.Fatalf("container command = %q, want in-image runner against the environment file", cmd)
	}
}
