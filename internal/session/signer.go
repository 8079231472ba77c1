package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo scopes the derived key to admin flag signing.
const hkdfInfo = "inkwell/session/admin-flag/v1"

// Signer signs the admin flag so it can only be produced by this server and
// only for the token it was issued alongside.
//
// The flag cookie then carries an HS256 JWT whose subject is the SHA-256 digest
// of the session token. A flag copied from another session, or typed in by
// hand, fails verification.
type Signer struct {
	key []byte
	now func() time.Time
}

type flagClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewSigner derives a signing key from secret. An empty secret is an error;
// callers that want unsigned flags should pass a nil *Signer to the store.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret is empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("session: derive signing key: %w", err)
	}

	return &Signer{key: key, now: time.Now}, nil
}

// Sign returns a flag value bound to token.
func (s *Signer) Sign(token string) (string, error) {
	now := s.now()
	claims := flagClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenDigest(token),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify reports whether flag is a valid, unexpired signature for token.
func (s *Signer) Verify(flag, token string) bool {
	if flag == "" || token == "" {
		return false
	}

	parsed, err := jwt.ParseWithClaims(flag, &flagClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return false
	}

	claims, ok := parsed.Claims.(*flagClaims)
	if !ok {
		return false
	}
	return claims.Role == "admin" && claims.Subject == tokenDigest(token)
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
