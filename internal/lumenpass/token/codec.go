package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// payloadVersion prefixes every encoded payload.  Bump it if the body
// layout or the tag construction ever changes.
const payloadVersion = "lp1"

const keySize = 32

var (
	// ErrMalformed means the payload is not structurally a LumenPass token.
	ErrMalformed = errors.New("payload is malformed")
	// ErrTagMismatch means the integrity tag did not verify.  Treat as
	// tampering: either the body was altered or the tag was forged.
	ErrTagMismatch = errors.New("payload integrity tag mismatch")
	// ErrUnsupported means the payload carries a version prefix this
	// codec does not understand.
	ErrUnsupported = errors.New("unsupported payload version")
)

// Claims is the credential reference recovered from a decoded payload.
// Short JSON keys keep the QR code small, matching the compact payloads
// printed on physical passes.
type Claims struct {
	CredentialID string `json:"id"`
	ExpiresAtMs  int64  `json:"exp"`
}

// ExpiresAt returns the expiry as a UTC time.
func (c Claims) ExpiresAt() time.Time {
	return time.UnixMilli(c.ExpiresAtMs).UTC()
}

// Codec encodes credential references into opaque QR payloads and decodes
// them back.  The payload shape is
//
//	lp1.<base64url(body)>.<base64url(tag)>
//
// where body is the JSON claims and tag is HMAC-SHA256 over
// "lp1.<base64url(body)>" keyed with a server-held secret.  Decoding is
// pure: it never touches a store.
type Codec struct {
	key []byte
}

func NewCodec(key []byte) (*Codec, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", keySize, len(key))
	}
	k := make([]byte, keySize)
	copy(k, key)
	return &Codec{key: k}, nil
}

// Encode produces the opaque payload for a credential id and expiry.
// Encoding is deterministic for a given key, id and expiry.
func (c *Codec) Encode(credentialID string, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(credentialID) == "" {
		return "", fmt.Errorf("credential id is required")
	}

	body, err := json.Marshal(Claims{
		CredentialID: credentialID,
		ExpiresAtMs:  expiresAt.UTC().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signed := payloadVersion + "." + base64.RawURLEncoding.EncodeToString(body)
	return signed + "." + base64.RawURLEncoding.EncodeToString(c.tag(signed)), nil
}

// Decode validates a payload and recovers its claims.  Errors are one of
// ErrMalformed, ErrUnsupported or ErrTagMismatch.
func (c *Codec) Decode(payload string) (Claims, error) {
	parts := strings.Split(payload, ".")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Claims{}, ErrMalformed
	}
	if parts[0] != payloadVersion {
		return Claims{}, ErrUnsupported
	}

	tag, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrMalformed
	}

	// Verify the tag before looking inside the body.
	if !hmac.Equal(tag, c.tag(parts[0]+"."+parts[1])) {
		return Claims{}, ErrTagMismatch
	}

	body, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, ErrMalformed
	}

	var claims Claims
	if err := json.Unmarshal(body, &claims); err != nil {
		return Claims{}, ErrMalformed
	}
	if claims.CredentialID == "" || claims.ExpiresAtMs <= 0 {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

func (c *Codec) tag(signed string) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(signed))
	return mac.Sum(nil)
}
