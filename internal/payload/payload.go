package payload

import (
	"encoding/base64"
	"fmt"

	"github.com/fernet/fernet-go"
	"github.com/fxamacker/cbor/v2"

	"github.com/driftworks/stevedore/internal/flow"
)

// Generates a fresh random encryption key.
func GenerateKey() (*fernet.Key, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &k, nil
}

// Parses a base64-encoded encryption key.
//
// A malformed key fails here, at parse time, so misconfiguration surfaces
// before anything is encrypted with it.
func ParseKey(s string) (*fernet.Key, error) {
	k, err := fernet.DecodeKey(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

// Encodes a flow into an encrypted, transport-safe payload.
//
// The flow is serialized to CBOR, encrypted and signed with the key, and the
// resulting token is base64-encoded so the payload can be embedded in
// text-based formats (JSON descriptors, environment files).
func Encode(f *flow.Flow, key *fernet.Key) ([]byte, error) {
	plain, err := cbor.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("flow serialization failed: %w", err)
	}

	token, err := fernet.EncryptAndSign(plain, key)
	if err != nil {
		return nil, fmt.Errorf("payload encryption failed: %w", err)
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(len(token)))
	base64.StdEncoding.Encode(out, token)
	return out, nil
}

// Decodes a payload produced by [Encode].
//
// Decryption authenticates the token: a payload encrypted with a different
// key, or tampered with in transit, yields [ErrInvalidPayload] rather than
// corrupt flow data.
func Decode(data []byte, key *fernet.Key) (*flow.Flow, error) {
	token := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(token, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	plain := fernet.VerifyAndDecrypt(token[:n], 0, []*fernet.Key{key})
	if plain == nil {
		return nil, fmt.Errorf("%w: decryption failed", ErrInvalidPayload)
	}

	var f flow.Flow
	if err := cbor.Unmarshal(plain, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return &f, nil
}
