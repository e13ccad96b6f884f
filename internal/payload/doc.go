// Package payload converts flows to and from encrypted byte payloads.
//
// A payload is a CBOR-serialized flow, encrypted and signed with a Fernet
// key, then base64-encoded. Encryption is authenticated: decoding with the
// wrong key or a tampered payload fails closed with [ErrInvalidPayload]
// instead of producing corrupt data. The key is not meant to be secret; it
// ties a payload to the environment descriptor that produced it.
package payload
