// Package auth verifies the bearer tokens and spending PIN of API callers.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	b64 = base64.RawURLEncoding

	// ErrTokenExpired is returned for tokens past their exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the token claims the API relies on.
type Claims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// SignHS256 creates a compact JWT string using HS256.
func SignHS256(claims Claims, secret []byte) (string, error) {
	h, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
	return unsigned + "." + b64.EncodeToString(sign(unsigned, secret)), nil
}

// IssueAccessToken signs a token for accountID valid for ttl.
func IssueAccessToken(accountID string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	return SignHS256(Claims{Subject: accountID, IssuedAt: now.Unix(), ExpiresAt: now.Add(ttl).Unix()}, secret)
}

// ParseAndVerifyHS256 verifies the token signature and expiry at now and
// returns its claims.
func ParseAndVerifyHS256(token string, secret []byte, now time.Time) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, errors.New("invalid token format")
	}

	header, err := b64.DecodeString(parts[0])
	if err != nil {
		return Claims{}, errors.New("invalid header encoding")
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(header, &hdr); err != nil || hdr.Alg != "HS256" {
		return Claims{}, errors.New("unsupported token algorithm")
	}

	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return Claims{}, errors.New("invalid signature encoding")
	}
	if !hmac.Equal(sig, sign(parts[0]+"."+parts[1], secret)) {
		return Claims{}, errors.New("signature mismatch")
	}

	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return Claims{}, errors.New("invalid payload encoding")
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, errors.New("invalid claims json")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("missing subject")
	}
	if claims.ExpiresAt != 0 && now.Unix() >= claims.ExpiresAt {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func sign(unsigned string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unsigned))
	return mac.Sum(nil)
}
