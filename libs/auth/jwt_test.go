package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func testClaims(sub, role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Role:  role,
		Email: sub + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestHS256RoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(testClaims("user-1", "client", time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	parsed, err := NewVerifier(secret, nil).Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if parsed.Subject != "user-1" || parsed.Role != "client" || parsed.Email != "user-1@example.com" {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := NewVerifier("wrong-secret", nil).Verify(token); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := SignHS256(testClaims("user-1", "client", -time.Minute), "s")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := NewVerifier("s", nil).Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestMissingSubjectRejected(t *testing.T) {
	claims := testClaims("", "provider", time.Hour)
	token, err := SignHS256(claims, "s")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := NewVerifier("s", nil).Verify(token); err == nil {
		t.Fatal("expected token without subject to be rejected")
	}
}

func TestRS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "kid-1",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, testClaims("user-2", "provider", time.Hour))
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	v := NewVerifier("", NewJWKSClient(srv.URL, time.Minute))
	parsed, err := v.Verify(signed)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if parsed.Subject != "user-2" || parsed.Role != "provider" {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}

	tok.Header["kid"] = "unknown"
	signed, err = tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := v.Verify(signed); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
}
