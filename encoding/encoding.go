// Package encoding provides the canonical challenge serialization and the
// base64/JSON codecs used for payment headers.
//
// The canonical message is the exact byte sequence a wallet signs to
// authorize a challenge. There is exactly one format: a fixed-order,
// newline-separated key/value rendering of the challenge fields. The
// server must verify signatures over the same bytes, so the field order
// here is part of the wire contract and must never change.
package encoding

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	pay "github.com/thisyearnofear/imperfectcoach-pay"
)

// canonicalHeader is the first line of every canonical message.
const canonicalHeader = "imperfectcoach-payment-v1"

// CanonicalMessage renders a challenge into its canonical signing bytes.
// Field order is fixed: scheme, network, asset, amount, payTo, nonce,
// timestamp. Extra data is deliberately excluded; it is not part of the
// signed contract.
func CanonicalMessage(ch pay.Challenge) []byte {
	var b strings.Builder
	b.WriteString(canonicalHeader)
	b.WriteByte('\n')
	writeField(&b, "scheme", ch.Scheme)
	writeField(&b, "network", ch.Network)
	writeField(&b, "asset", ch.Asset)
	writeField(&b, "amount", ch.Amount)
	writeField(&b, "payTo", ch.PayTo)
	writeField(&b, "nonce", ch.Nonce)
	writeField(&b, "timestamp", strconv.FormatInt(ch.Timestamp, 10))
	return []byte(b.String())
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

// AuthorizationHash derives the idempotency key for a signed
// authorization: SHA-256 over the canonical message and the signature.
func AuthorizationHash(auth pay.SignedAuthorization) string {
	h := sha256.New()
	h.Write(CanonicalMessage(auth.Challenge))
	h.Write([]byte(auth.Signature))
	return hex.EncodeToString(h.Sum(nil))
}

// EncodeAuthorization converts a SignedAuthorization to the base64 JSON
// form carried in the X-Payment header.
func EncodeAuthorization(auth pay.SignedAuthorization) (string, error) {
	raw, err := json.Marshal(auth)
	if err != nil {
		return "", fmt.Errorf("failed to marshal authorization: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeAuthorization parses a base64 JSON X-Payment header value.
func DecodeAuthorization(encoded string) (pay.SignedAuthorization, error) {
	var auth pay.SignedAuthorization

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return auth, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(raw, &auth); err != nil {
		return auth, fmt.Errorf("failed to unmarshal authorization: %w", err)
	}

	return auth, nil
}

// EncodeSettlement converts a Settlement to base64 JSON for the
// X-Payment-Response header.
func EncodeSettlement(s pay.Settlement) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSettlement parses a base64 JSON X-Payment-Response header value.
func DecodeSettlement(encoded string) (pay.Settlement, error) {
	var s pay.Settlement

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return s, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal settlement: %w", err)
	}

	return s, nil
}
