package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA-256 pre-digest so refresh tokens fit bcrypt's input limit
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"golang.org/x/crypto/bcrypt"
)

// Identity is the set of claims embedded in both tokens of a pair. The
// rate-limit parameters travel inside the token so the limiter can compare
// the state at issuance against the stored state without a second lookup.
type Identity struct {
	ID            string // user id (uuid)
	Fullname      string
	Username      string
	Email         string
	RemainingHits int   // request budget at issuance time
	WindowMillis  int64 // rate-limit window at issuance time
}

// TokenPair holds a signed access token and its companion refresh token.
// Both carry identical identity claims but are signed with distinct
// secrets and expiries. The pair itself is never persisted; callers store
// only a hash of the refresh token.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// IssueTokenPair builds and signs the access/refresh pair for a user.
// Lifetimes are per-user values read from the user record, not static
// config: accessTTLSec for the access token, refreshTTLSec for the
// refresh token. The function is pure; persisting the refresh hash is
// the caller's responsibility.
func IssueTokenPair(atSecret, rtSecret string, id Identity, accessTTLSec, refreshTTLSec int) (TokenPair, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"id":            id.ID,
		"fullname":      id.Fullname,
		"username":      id.Username,
		"email":         id.Email,
		"remainingHits": id.RemainingHits,
		"ttlMillis":     id.WindowMillis,
		"iat":           now.Unix(),
	}

	access, err := signWithExpiry(claims, atSecret, now.Add(time.Duration(accessTTLSec)*time.Second))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := signWithExpiry(claims, rtSecret, now.Add(time.Duration(refreshTTLSec)*time.Second))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// signWithExpiry signs a copy of the claims with the given expiry. The
// shared claims map must not be mutated, both tokens read from it.
func signWithExpiry(base jwt.MapClaims, secret string, exp time.Time) (string, error) {
	claims := jwt.MapClaims{}
	for k, v := range base {
		claims[k] = v
	}
	claims["exp"] = exp.Unix()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// DecodeExpiry extracts the exp claim from a JWT without verifying the
// signature. It exists to report a client-visible "expires at" right
// after issuance, where the token was just signed by us; it must never
// be used to validate an inbound token.
func DecodeExpiry(token string) (int64, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, errors.New("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return 0, err
	}
	var body struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, err
	}
	return body.Exp, nil
}

// HashRefresh produces the storable hash of a refresh token: a bcrypt
// digest over the hex SHA-256 of the raw token. The pre-digest keeps the
// input under bcrypt's 72-byte cap (JWTs are longer); bcrypt supplies the
// salt and the cost so stolen rows cannot be replayed cheaply.
func HashRefresh(raw string) (string, error) {
	sum := sha256.Sum256([]byte(raw))
	b, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(sum[:])), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyRefresh reports whether raw matches a hash produced by HashRefresh.
func VerifyRefresh(hash, raw string) bool {
	sum := sha256.Sum256([]byte(raw))
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(hex.EncodeToString(sum[:]))) == nil
}
