package environment

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/driftworks/stevedore/internal/flow"
	"github.com/driftworks/stevedore/internal/paths"
	"github.com/driftworks/stevedore/internal/registry"
)

// URL of the prebuilt stevedore runtime installed into images. Fetching it
// requires the access token from the process environment.
const runtimeReleaseURL = "https://releases.driftworks.io/stevedore/latest/stevedore-linux-amd64"

// A staged file and its in-image destination.
type copyDirective struct {
	Name string // Basename inside the build context.
	Dest string // Absolute destination path inside the image.
}

var dockerfileTemplate = template.Must(template.New("dockerfile").Parse(`FROM {{ .BaseImage }}

RUN apt-get -qq -y update && apt-get -qq -y install --no-install-recommends --no-install-suggests curl ca-certificates

RUN pip install pip --upgrade
RUN pip install wheel
{{ range .Dependencies }}RUN pip install {{ . }}
{{ end }}
RUN mkdir -p {{ .ConfigDir }}
COPY {{ .EnvFileName }} {{ .EnvFilePath }}
{{ range .Copies }}COPY {{ .Name }} {{ .Dest }}
{{ end }}
ENV {{ .EnvFileVariable }}="{{ .EnvFilePath }}"
ENV {{ .ConfigVariable }}="{{ .ConfigFilePath }}"
{{ if .EnvVars }}{{ .EnvVars }}
{{ end }}
RUN curl -fsSL -H "Authorization: Bearer {{ .AccessToken }}" {{ .ReleaseURL }} -o /usr/local/bin/stevedore && chmod 0755 /usr/local/bin/stevedore
`))

// Template inputs for the generated Dockerfile.
type dockerfileData struct {
	BaseImage       string
	Dependencies    []string
	Copies          []copyDirective
	ConfigDir       string
	EnvFileName     string
	EnvFilePath     string
	ConfigFilePath  string
	EnvFileVariable string
	ConfigVariable  string
	EnvVars         string
	AccessToken     string
	ReleaseURL      string
}

// Writes a self-contained image build context into a directory.
//
// The context holds the generated Dockerfile, a staged copy of every
// declared auxiliary file, and a serialized local environment binding the
// flow. The Dockerfile, in order: installs OS prerequisites, upgrades pip,
// installs each declared dependency, creates the config directory, copies
// the environment file and the staged files in, sets the environment-file
// and config-path variables plus the declared environment variables, and
// installs the stevedore runtime using the access token from the process
// environment.
func writeBuildContext(ctx context.Context, dir string, e *Container, f *flow.Flow) error {
	copies, err := stageFiles(dir, e.files)
	if err != nil {
		return err
	}

	if err := embedLocalEnvironment(ctx, dir, f); err != nil {
		return err
	}

	data := dockerfileData{
		BaseImage:       e.baseImage,
		Dependencies:    e.dependencies,
		Copies:          copies,
		ConfigDir:       ImageConfigDir,
		EnvFileName:     EnvironmentFileName,
		EnvFilePath:     ImageEnvironmentFile,
		ConfigFilePath:  ImageUserConfigFile,
		EnvFileVariable: EnvFileVariable,
		ConfigVariable:  UserConfigVariable,
		EnvVars:         renderEnvVars(e.envVars),
		AccessToken:     os.Getenv(AccessTokenVariable),
		ReleaseURL:      runtimeReleaseURL,
	}

	var script bytes.Buffer
	if err := dockerfileTemplate.Execute(&script, data); err != nil {
		return fmt.Errorf("%w: %v", ErrBuildContext, err)
	}

	dockerfile := filepath.Join(dir, registry.DockerfileName)
	if err := os.WriteFile(dockerfile, script.Bytes(), paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %v", ErrBuildContext, err)
	}

	return nil
}

// Copies the declared auxiliary files into the build context.
//
// Each source is staged under its basename. A pre-existing staged file with
// identical content is tolerated (re-synthesizing the same context is not
// an error); differing content is a [ErrFileConflict], since both sources
// would claim the same in-context name. Returns the copy directives in
// sorted source order, so the generated script is stable.
func stageFiles(dir string, files map[string]string) ([]copyDirective, error) {
	sources := slices.Sorted(maps.Keys(files))

	copies := make([]copyDirective, 0, len(sources))
	for _, src := range sources {
		name := filepath.Base(src)
		staged := filepath.Join(dir, name)

		content, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBuildContext, err)
		}

		if existing, err := os.ReadFile(staged); err == nil {
			if !bytes.Equal(existing, content) {
				return nil, fmt.Errorf("%w: %s already exists in %s with different content", ErrFileConflict, name, dir)
			}
		} else if err := os.WriteFile(staged, content, paths.DefaultFileMode); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBuildContext, err)
		}

		copies = append(copies, copyDirective{Name: name, Dest: files[src]})
	}

	return copies, nil
}

// Builds a fresh local environment for the flow and persists it into the
// build context under its well-known filename. The in-container runner
// reconstitutes and runs it.
func embedLocalEnvironment(ctx context.Context, dir string, f *flow.Flow) error {
	local, err := NewLocal(LocalOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildContext, err)
	}

	built, err := local.Build(ctx, f)
	if err != nil {
		return err
	}

	if err := ToFile(built, filepath.Join(dir, EnvironmentFileName)); err != nil {
		return fmt.Errorf("%w: %v", ErrBuildContext, err)
	}

	return nil
}

// Renders the declared environment variables as one combined ENV directive.
// Keys are sorted for a stable script. Returns "" when there are none.
func renderEnvVars(envVars map[string]string) string {
	if len(envVars) == 0 {
		return ""
	}

	keys := slices.Sorted(maps.Keys(envVars))

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+envVars[k])
	}

	return "ENV " + strings.Join(pairs, " \\\n    ")
}
