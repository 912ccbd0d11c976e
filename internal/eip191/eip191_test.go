package eip191

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestDigest(t *testing.T) {
	msg := []byte("hello")

	got := Digest(msg)
	want := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	if !bytes.Equal(got, want) {
		t.Errorf("Digest mismatch: got %x, want %x", got, want)
	}

	if len(got) != 32 {
		t.Errorf("Expected 32-byte digest, got %d", len(got))
	}

	// The length prefix makes equal-prefix messages hash differently.
	if bytes.Equal(Digest([]byte("ab")), Digest([]byte("a"))) {
		t.Error("Different messages must produce different digests")
	}
}
