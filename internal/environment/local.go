package environment

import (
	"context"
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/driftworks/stevedore/internal/flow"
	"github.com/driftworks/stevedore/internal/payload"
)

// Runs a flow in the local process.
//
// The flow is held as an encrypted payload produced by Build. The encryption
// key is stored on the environment and is not meant to be secret; it ensures
// that only this environment can run the serialized flow.
type Local struct {
	key     *fernet.Key        // Symmetric key the payload is bound to.
	payload []byte             // Encrypted, encoded flow. Empty until built.
	factory flow.RunnerFactory // Constructs the execution engine. Defaults to [flow.NewTaskRunner].
}

// Configures a [Local] environment.
type LocalOptions struct {
	EncryptionKey string             // Base64 key. Empty generates a fresh one.
	Payload       []byte             // Encrypted payload, usually produced by Build.
	Runner        flow.RunnerFactory // Execution engine factory. Nil uses the built-in engine.
}

// Creates a local environment.
//
// A malformed encryption key fails here with [payload.ErrInvalidKey] rather
// than surfacing later as a decryption failure.
func NewLocal(opts LocalOptions) (*Local, error) {
	var key *fernet.Key
	var err error

	if opts.EncryptionKey == "" {
		key, err = payload.GenerateKey()
	} else {
		key, err = payload.ParseKey(opts.EncryptionKey)
	}
	if err != nil {
		return nil, err
	}

	return &Local{
		key:     key,
		payload: opts.Payload,
		factory: opts.Runner,
	}, nil
}

// Returns the base64-encoded encryption key.
func (e *Local) EncryptionKey() string {
	return e.key.Encode()
}

// Returns the encrypted payload. Empty until the environment is built.
func (e *Local) Payload() []byte {
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out
}

// Returns true once the environment carries a payload.
func (e *Local) Built() bool {
	return len(e.payload) > 0
}

// Binds a flow to this environment.
//
// Returns a new [Local] holding the same key and the flow encoded as an
// encrypted payload. The receiver is not modified.
func (e *Local) Build(ctx context.Context, f *flow.Flow) (Environment, error) {
	encoded, err := payload.Encode(f, e.key)
	if err != nil {
		return nil, err
	}

	return &Local{
		key:     e.key,
		payload: encoded,
		factory: e.factory,
	}, nil
}

// Runs the flow held by this environment.
//
// The payload is decoded and handed to a runner constructed by the
// environment's factory. Fails with [ErrNotBuilt] when no payload is set,
// and with [payload.ErrInvalidPayload] when the payload does not match the
// key.
func (e *Local) Run(ctx context.Context, opts flow.RunOptions) (*flow.State, error) {
	if !e.Built() {
		return nil, fmt.Errorf("%w: local environment has no payload", ErrNotBuilt)
	}

	f, err := payload.Decode(e.payload, e.key)
	if err != nil {
		return nil, err
	}

	factory := e.factory
	if factory == nil {
		factory = flow.NewTaskRunner
	}

	return factory(f).Run(ctx, opts)
}

// Returns the environment as a plain JSON-compatible mapping.
func (e *Local) Serialize() (map[string]any, error) {
	return serialize(e.wire())
}
