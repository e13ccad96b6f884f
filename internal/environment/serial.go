package environment

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/driftworks/stevedore/internal/paths"
)

// Type tags identifying descriptor variants on disk.
const (
	typeLocal     = "LocalEnvironment"
	typeContainer = "ContainerEnvironment"
)

// On-disk form of a [Local] environment.
type localWire struct {
	Type           string `json:"type"`
	EncryptionKey  string `json:"encryption_key"`
	SerializedFlow string `json:"serialized_flow,omitempty"`
}

// On-disk form of a [Container] environment.
type containerWire struct {
	Type               string            `json:"type"`
	BaseImage          string            `json:"base_image"`
	RegistryURL        string            `json:"registry_url"`
	PythonDependencies []string          `json:"python_dependencies,omitempty"`
	ImageName          string            `json:"image_name,omitempty"`
	ImageTag           string            `json:"image_tag,omitempty"`
	EnvVars            map[string]string `json:"env_vars,omitempty"`
	Files              map[string]string `json:"files,omitempty"`
}

// Decoders for each registered descriptor type.
var decoders = map[string]func(data []byte) (Environment, error){
	typeLocal:     decodeLocal,
	typeContainer: decodeContainer,
}

// Serializes an environment descriptor to JSON.
func Marshal(e Environment) ([]byte, error) {
	var wire any

	switch env := e.(type) {
	case *Local:
		wire = env.wire()
	case *Container:
		wire = env.wire()
	default:
		return nil, fmt.Errorf("%w: unknown environment type %T", ErrSerialization, e)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

// Reconstitutes an environment descriptor from JSON.
//
// The envelope's type tag selects the decoder; an unregistered tag fails
// with [ErrSerialization].
func Unmarshal(data []byte) (Environment, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	decode, ok := decoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown environment type %q", ErrSerialization, envelope.Type)
	}

	return decode(data)
}

// Writes an environment descriptor to a file.
func ToFile(e Environment, path string) error {
	data, err := Marshal(e)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// Loads an environment descriptor from a file.
func FromFile(path string) (Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return Unmarshal(data)
}

func (e *Local) wire() localWire {
	return localWire{
		Type:           typeLocal,
		EncryptionKey:  e.key.Encode(),
		SerializedFlow: string(e.payload),
	}
}

func decodeLocal(data []byte) (Environment, error) {
	var w localWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return NewLocal(LocalOptions{
		EncryptionKey: w.EncryptionKey,
		Payload:       []byte(w.SerializedFlow),
	})
}

func (e *Container) wire() containerWire {
	w := containerWire{
		Type:               typeContainer,
		BaseImage:          e.baseImage,
		RegistryURL:        e.registryURL,
		PythonDependencies: e.dependencies,
		EnvVars:            e.envVars,
		Files:              e.files,
	}
	if e.image != nil {
		w.ImageName = e.image.Name
		w.ImageTag = e.image.Tag
	}
	return w
}

func decodeContainer(data []byte) (Environment, error) {
	var w containerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	var image *ImageCoordinate
	if w.ImageName != "" || w.ImageTag != "" {
		image = &ImageCoordinate{Name: w.ImageName, Tag: w.ImageTag}
	}

	return NewContainer(ContainerOptions{
		BaseImage:          w.BaseImage,
		RegistryURL:        w.RegistryURL,
		PythonDependencies: w.PythonDependencies,
		EnvVars:            w.EnvVars,
		Files:              w.Files,
		Image:              image,
	})
}

// Converts a wire struct to a plain JSON-compatible mapping.
func serialize(wire any) (map[string]any, error) {
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return m, nil
}
