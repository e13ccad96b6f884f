package payload

import (
	"errors"
	"reflect"
	"testing"

	"github.com/driftworks/stevedore/internal/flow"
)

func testFlow() *flow.Flow {
	return &flow.Flow{
		Name:       "etl",
		Parameters: map[string]string{"region": "eu"},
		Tasks: []flow.Task{
			{Name: "extract", Action: "test.echo", With: map[string]string{"msg": "hi"}},
			{Name: "load", Action: "test.echo", DependsOn: []string{"extract"}},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	f := testFlow()

	encoded, err := Encode(f, key)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(encoded) == 0 {
		t.Fatal("Encode() produced an empty payload")
	}

	decoded, err := Decode(encoded, key)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(f, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, f)
	}
}

func TestDecodeWrongKey(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := Encode(testFlow(), k1)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if _, err := Decode(encoded, k2); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Decode() with wrong key = %v, want ErrInvalidPayload", err)
	}
}

func TestDecodeTamperedPayload(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := Encode(testFlow(), key)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Flip a byte in the middle of the encoded token.
	tampered := make([]byte, len(encoded))
	copy(tampered, encoded)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	if _, err := Decode(tampered, key); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Decode() of tampered payload = %v, want ErrInvalidPayload", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Decode([]byte("!!not-base64!!"), key); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("Decode() of garbage = %v, want ErrInvalidPayload", err)
	}
}

func TestParseKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseKey(key.Encode())
	if err != nil {
		t.Fatalf("ParseKey() error = %v", err)
	}
	if parsed.Encode() != key.Encode() {
		t.Fatalf("ParseKey() = %q, want %q", parsed.Encode(), key.Encode())
	}
}

func TestParseKeyMalformed(t *testing.T) {
	if _, err := ParseKey("not a key"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("ParseKey() = %v, want ErrInvalidKey", err)
	}
}
