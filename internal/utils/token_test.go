package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testATSecret = "access-secret-for-tests-0123456789"
	testRTSecret = "refresh-secret-for-tests-987654321"
)

func testIdentity() Identity {
	return Identity{
		ID:            "8f14e45f-ceea-467f-a0e6-b1a6c1f1c111",
		Fullname:      "Dana Tester",
		Username:      "dana",
		Email:         "dana@example.com",
		RemainingHits: 100,
		WindowMillis:  60000,
	}
}

func parseClaims(t *testing.T, raw, secret string) jwt.MapClaims {
	t.Helper()
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("token did not validate: %v", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type %T", tok.Claims)
	}
	return claims
}

func TestIssueTokenPairClaims(t *testing.T) {
	id := testIdentity()
	pair, err := IssueTokenPair(testATSecret, testRTSecret, id, 3600, 7*24*3600)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	for name, tok := range map[string]struct {
		raw    string
		secret string
	}{
		"access":  {pair.Access, testATSecret},
		"refresh": {pair.Refresh, testRTSecret},
	} {
		claims := parseClaims(t, tok.raw, tok.secret)
		if claims["id"] != id.ID {
			t.Errorf("%s: id = %v, want %v", name, claims["id"], id.ID)
		}
		if claims["username"] != id.Username {
			t.Errorf("%s: username = %v, want %v", name, claims["username"], id.Username)
		}
		if claims["email"] != id.Email {
			t.Errorf("%s: email = %v, want %v", name, claims["email"], id.Email)
		}
		if hits, _ := claims["remainingHits"].(float64); int(hits) != id.RemainingHits {
			t.Errorf("%s: remainingHits = %v, want %d", name, claims["remainingHits"], id.RemainingHits)
		}
		if ttl, _ := claims["ttlMillis"].(float64); int64(ttl) != id.WindowMillis {
			t.Errorf("%s: ttlMillis = %v, want %d", name, claims["ttlMillis"], id.WindowMillis)
		}
	}
}

func TestIssueTokenPairDistinctExpiries(t *testing.T) {
	pair, err := IssueTokenPair(testATSecret, testRTSecret, testIdentity(), 60, 3600)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	accessExp, err := DecodeExpiry(pair.Access)
	if err != nil {
		t.Fatalf("DecodeExpiry(access): %v", err)
	}
	refreshExp, err := DecodeExpiry(pair.Refresh)
	if err != nil {
		t.Fatalf("DecodeExpiry(refresh): %v", err)
	}

	now := time.Now().Unix()
	if d := accessExp - now; d < 58 || d > 62 {
		t.Errorf("access expiry %ds from now, want ~60s", d)
	}
	if d := refreshExp - now; d < 3598 || d > 3602 {
		t.Errorf("refresh expiry %ds from now, want ~3600s", d)
	}
}

func TestIssueTokenPairWrongSecretRejected(t *testing.T) {
	pair, err := IssueTokenPair(testATSecret, testRTSecret, testIdentity(), 60, 60)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	// The refresh secret must not validate the access token or vice versa.
	if _, err := jwt.Parse(pair.Access, func(t *jwt.Token) (interface{}, error) {
		return []byte(testRTSecret), nil
	}); err == nil {
		t.Error("access token validated with the refresh secret")
	}
	if _, err := jwt.Parse(pair.Refresh, func(t *jwt.Token) (interface{}, error) {
		return []byte(testATSecret), nil
	}); err == nil {
		t.Error("refresh token validated with the access secret")
	}
}

func TestDecodeExpiryMalformed(t *testing.T) {
	for _, raw := range []string{"", "onlyonepart", "a.b", "a.!!!notbase64!!!.c"} {
		if _, err := DecodeExpiry(raw); err == nil {
			t.Errorf("DecodeExpiry(%q) = nil error, want failure", raw)
		}
	}
}

func TestHashRefreshRoundTrip(t *testing.T) {
	pair, err := IssueTokenPair(testATSecret, testRTSecret, testIdentity(), 60, 60)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	hash, err := HashRefresh(pair.Refresh)
	if err != nil {
		t.Fatalf("HashRefresh: %v", err)
	}
	if hash == pair.Refresh {
		t.Fatal("hash equals the raw token")
	}
	if !VerifyRefresh(hash, pair.Refresh) {
		t.Error("VerifyRefresh rejected the original token")
	}
	if VerifyRefresh(hash, pair.Access) {
		t.Error("VerifyRefresh accepted a different token")
	}
}

func TestHashRefreshLongInput(t *testing.T) {
	// JWTs exceed bcrypt's 72-byte input cap; the SHA-256 pre-digest must
	// make length irrelevant.
	long := make([]byte, 512)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	hash, err := HashRefresh(string(long))
	if err != nil {
		t.Fatalf("HashRefresh(long): %v", err)
	}
	if !VerifyRefresh(hash, string(long)) {
		t.Error("VerifyRefresh rejected the long token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pw", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "s3cret-pw") {
		t.Error("VerifyPassword rejected the correct password")
	}
	if VerifyPassword(hash, "wrong-pw") {
		t.Error("VerifyPassword accepted the wrong password")
	}
}
