package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (

	// Default Docker daemon socket address.
	DefaultDaemonAddress = "unix:///var/run/docker.sock"

	// Name of the build script inside a build context directory.
	DockerfileName = "Dockerfile"
)

// The subset of the Docker daemon API the client uses.
//
// [client.Client] satisfies this interface; tests substitute a fake so no
// daemon is needed.
type API interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
	ImageRemove(ctx context.Context, ref string, options image.RemoveOptions) ([]image.DeleteResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
}

// Talks to a local Docker daemon for image and container operations.
//
// All operations are blocking: streamed daemon responses are drained to
// completion before the call returns. Progress is forwarded to the
// configured [Observer] as it arrives.
type Client struct {
	api      API      // Daemon API, a real client or a test fake.
	observer Observer // Sink for streamed progress.
	auth     string   // Base64 registry auth forwarded on push, may be empty.
}

// Configures a [Client].
type Option func(*Client)

// Substitutes the daemon API. Used by tests and embedders with an existing
// client.
func WithAPI(api API) Option {
	return func(c *Client) { c.api = api }
}

// Sets the progress observer. Defaults to stdout.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// Sets the base64-encoded registry credentials forwarded on push.
func WithRegistryAuth(auth string) Option {
	return func(c *Client) { c.auth = auth }
}

// Creates a client connected to the Docker daemon at the given address.
//
// An empty address uses [DefaultDaemonAddress]. The daemon's API version is
// negotiated on first use.
func New(address string, opts ...Option) (*Client, error) {
	c := &Client{observer: Stdout()}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		if address == "" {
			address = DefaultDaemonAddress
		}
		api, err := client.NewClientWithOpts(client.WithHost(address), client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDaemon, err)
		}
		c.api = api
	}

	return c, nil
}

// Pulls an image from its registry into the daemon's local cache.
//
// Progress events with progress data are forwarded to the observer. The
// stream is drained to completion before Pull returns. A missing image or
// unreachable daemon is fatal.
func (c *Client) Pull(ctx context.Context, ref string) error {
	slog.Info("pulling base image", "ref", ref)

	rc, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: pull %s: %v", ErrDaemon, ref, err)
	}
	defer rc.Close()

	if err := c.drain(rc, c.forwardProgress); err != nil {
		return fmt.Errorf("%w: pull %s: %v", ErrDaemon, ref, err)
	}

	return nil
}

// Builds a context directory into an image with the given fully-qualified
// tag.
//
// Layer caching is disabled so every build reflects the current context
// verbatim. Intermediate containers are removed. The daemon's build log is
// streamed to the observer, one non-blank line at a time; a build error
// reported in the stream is fatal.
func (c *Client) Build(ctx context.Context, contextDir, tag string) error {
	slog.Info("building image", "tag", tag, "context", contextDir)

	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("%w: build %s: %v", ErrDaemon, tag, err)
	}
	defer buildCtx.Close()

	resp, err := c.api.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  DockerfileName,
		NoCache:     true,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("%w: build %s: %v", ErrDaemon, tag, err)
	}
	defer resp.Body.Close()

	if err := c.drain(resp.Body, c.forwardStream); err != nil {
		return fmt.Errorf("%w: build %s: %v", ErrDaemon, tag, err)
	}

	return nil
}

// Pushes a built image to its registry and returns the digest the registry
// assigned, when the daemon reports one.
//
// Progress events with progress data are forwarded to the observer. Failure
// is fatal to the enclosing build.
func (c *Client) Push(ctx context.Context, ref string) (digest.Digest, error) {
	slog.Info("pushing image", "ref", ref)

	rc, err := c.api.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: c.auth})
	if err != nil {
		return "", fmt.Errorf("%w: push %s: %v", ErrDaemon, ref, err)
	}
	defer rc.Close()

	var pushed digest.Digest
	forward := func(msg jsonmessage.JSONMessage) {
		c.forwardProgress(msg)
		if d, ok := pushDigest(msg); ok {
			pushed = d
		}
	}

	if err := c.drain(rc, forward); err != nil {
		return "", fmt.Errorf("%w: push %s: %v", ErrDaemon, ref, err)
	}

	if pushed != "" {
		slog.Info("image pushed", "ref", ref, "digest", pushed)
	}
	return pushed, nil
}

// Removes an image from the daemon's local cache.
//
// Dangling parent layers are left for the daemon to garbage-collect. The
// removal is forced so the pushed tag does not pin the local copy.
func (c *Client) Remove(ctx context.Context, ref string) error {
	slog.Debug("removing local image", "ref", ref)

	if _, err := c.api.ImageRemove(ctx, ref, image.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrDaemon, ref, err)
	}

	return nil
}

// Creates and starts a detached container from an image.
//
// Returns the container ID. The container's result is not retrieved here;
// callers attach or read logs through the daemon if they need it.
func (c *Client) StartContainer(ctx context.Context, imageRef string, cmd []string) (string, error) {
	created, err := c.api.ContainerCreate(ctx, &container.Config{
		Image: imageRef,
		Cmd:   strslice.StrSlice(cmd),
	}, nil, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("%w: create container from %s: %v", ErrDaemon, imageRef, err)
	}

	if err := c.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("%w: start container %s: %v", ErrDaemon, created.ID, err)
	}

	slog.Info("container started", "id", created.ID, "image", imageRef)
	return created.ID, nil
}

// Decodes a daemon progress stream, forwarding each record.
//
// The stream is a sequence of JSON progress records. An error record aborts
// the drain and is returned to the caller; everything before it has already
// been forwarded.
func (c *Client) drain(r io.Reader, forward func(jsonmessage.JSONMessage)) error {
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("malformed progress stream: %v", err)
		}

		if msg.Error != nil {
			return errors.New(msg.Error.Message)
		}
		if msg.ErrorMessage != "" {
			return errors.New(msg.ErrorMessage)
		}

		forward(msg)
	}
}

// Forwards a pull/push progress record carrying progress data.
func (c *Client) forwardProgress(msg jsonmessage.JSONMessage) {
	if msg.Progress == nil {
		return
	}
	if p := msg.Progress.String(); p != "" {
		c.observer.Progress(msg.Status, p)
	}
}

// Forwards a build log record's stream field, skipping blank lines.
func (c *Client) forwardStream(msg jsonmessage.JSONMessage) {
	line := strings.Trim(msg.Stream, "\n")
	if line == "" {
		return
	}
	c.observer.Line(line)
}

// Extracts the registry digest from a push aux record, if present.
func pushDigest(msg jsonmessage.JSONMessage) (digest.Digest, bool) {
	if msg.Aux == nil {
		return "", false
	}

	var result types.PushResult
	if err := json.Unmarshal(*msg.Aux, &result); err != nil || result.Digest == "" {
		return "", false
	}

	d, err := digest.Parse(result.Digest)
	if err != nil {
		return "", false
	}
	return d, true
}
