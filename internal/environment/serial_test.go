package environment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/driftworks/stevedore/internal/flow"
)

func TestLocalRoundTrip(t *testing.T) {
	registerEcho(t)

	env, err := NewLocal(LocalOptions{})
	if err != nil {
		t.Fatal(err)
	}
	built, err := env.Build(context.Background(), testFlow())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "env.json")
	if err := ToFile(built, path); err != nil {
		t.Fatalf("ToFile() error = %v", err)
	}

	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}

	local, ok := loaded.(*Local)
	if !ok {
		t.Fatalf("FromFile() = %T, want *Local", loaded)
	}
	if !local.Built() {
		t.Fatal("round trip lost the payload")
	}
	if local.EncryptionKey() != built.(*Local).EncryptionKey() {
		t.Fatal("round trip changed the encryption key")
	}

	state, err := local.Run(context.Background(), flow.RunOptions{})
	if err != nil {
		t.Fatalf("Run() after round trip error = %v", err)
	}
	if !state.Successful() {
		t.Fatalf("status = %q, want success", state.Status)
	}
}

func TestLocalUnbuiltRoundTrip(t *testing.T) {
	env, err := NewLocal(LocalOptions{})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "env.json")
	if err := ToFile(env, path); err != nil {
		t.Fatalf("ToFile() error = %v", err)
	}

	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if loaded.(*Local).Built() {
		t.Fatal("unbuilt environment came back built")
	}
}

func TestContainerRoundTrip(t *testing.T) {
	env, err := NewContainer(ContainerOptions{
		BaseImage:          "python:3.7",
		RegistryURL:        "myrepo",
		PythonDependencies: []string{"requests", "pandas"},
		EnvVars:            map[string]string{"MODE": "prod"},
		Files:              map[string]string{"/abs/source.txt": "/app/source.txt"},
		Image:              &ImageCoordinate{Name: "img", Tag: "tag"},
	})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "env.json")
	if err := ToFile(env, path); err != nil {
		t.Fatalf("ToFile() error = %v", err)
	}

	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}

	c, ok := loaded.(*Container)
	if !ok {
		t.Fatalf("FromFile() = %T, want *Container", loaded)
	}
	if c.BaseImage() != "python:3.7" || c.RegistryURL() != "myrepo" {
		t.Fatalf("coordinates = %q %q", c.BaseImage(), c.RegistryURL())
	}
	deps := c.PythonDependencies()
	if len(deps) != 2 || deps[0] != "requests" || deps[1] != "pandas" {
		t.Fatalf("dependencies = %v", deps)
	}
	img := c.Image()
	if img == nil || img.Name != "img" || img.Tag != "tag" {
		t.Fatalf("image = %+v, want img:tag", img)
	}
	if !c.Built() {
		t.Fatal("round trip lost the image coordinates")
	}
}

func TestContainerUnbuiltRoundTrip(t *testing.T) {
	env, err := NewContainer(ContainerOptions{
		BaseImage:   "python:3.7",
		RegistryURL: "myrepo",
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	loaded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if loaded.(*Container).Built() {
		t.Fatal("unbuilt environment came back built")
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"MartianEnvironment"}`))
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("Unmarshal() = %v, want ErrSerialization", err)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := Unmarshal([]byte(`{not json`))
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("Unmarshal() = %v, want ErrSerialization", err)
	}
}

func TestLocalSerialize(t *testing.T) {
	env, err := NewLocal(LocalOptions{})
	if err != nil {
		t.Fatal(err)
	}

	m, err := env.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if m["type"] != typeLocal {
		t.Fatalf("type = %v, want %q", m["type"], typeLocal)
	}
	if m["encryption_key"] == "" {
		t.Fatal("serialized form missing the encryption key")
	}
}

func TestContainerSerialize(t *testing.T) {
	env, err := NewContainer(ContainerOptions{
		BaseImage:   "python:3.7",
		RegistryURL: "myrepo",
		EnvVars:     map[string]string{"MODE": "prod"},
	})
	if err != nil {
		t.Fatal(err)
	}

	m, err := env.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if m["type"] != typeContainer {
		t.Fatalf("type = %v, want %q", m["type"], typeContainer)
	}
	if m["base_image"] != "python:3.7" {
		t.Fatalf("base_image = %v", m["base_image"])
	}
	vars, ok := m["env_vars"].(map[string]any)
	if !ok || vars["MODE"] != "prod" {
		t.Fatalf("env_vars = %v", m["env_vars"])
	}
}
