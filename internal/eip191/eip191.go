// Package eip191 implements EIP-191 personal-message digests, the hash
// form wallets apply before ECDSA-signing arbitrary UTF-8 messages.
package eip191

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Digest returns the EIP-191 "personal sign" digest of a message:
// keccak256("\x19Ethereum Signed Message:\n" || len(msg) || msg).
func Digest(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256(append([]byte(prefix), msg...))
}
