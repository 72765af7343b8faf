package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/semgrep-mcp/semgrep-mcp/internal/config"
)

const (
	testIssuer   = "https://auth.example.com/"
	testAudience = "semgrep-mcp"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func testVerifier(key *rsa.PrivateKey, skipAudience bool) *Verifier {
	kf := func(token *jwt.Token) (any, error) { return &key.PublicKey, nil }
	return newVerifier(kf, config.AuthConfig{
		Issuer:            testIssuer,
		Audience:          testAudience,
		SkipAudienceCheck: skipAudience,
	})
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	}
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestVerify_ValidToken(t *testing.T) {
	key := testKey(t)
	claims := validClaims()
	tokenString := sign(t, key, claims)

	got := testVerifier(key, false).Verify(tokenString)
	if got == nil {
		t.Fatal("Verify() = nil, want a verified token")
	}
	if got.Token != tokenString {
		t.Error("Verify().Token does not match the input token")
	}
	if got.ClientID != testAudience {
		t.Errorf("Verify().ClientID = %q, want %q", got.ClientID, testAudience)
	}
	if got.ExpiresAt.Unix() != claims["exp"].(int64) {
		t.Errorf("Verify().ExpiresAt = %d, want exp claim %d", got.ExpiresAt.Unix(), claims["exp"])
	}

	wantScopes := []string{"openid", "profile", "email"}
	if len(got.Scopes) != len(wantScopes) {
		t.Fatalf("Verify().Scopes = %v, want %v", got.Scopes, wantScopes)
	}
	for i, s := range wantScopes {
		if got.Scopes[i] != s {
			t.Errorf("Verify().Scopes[%d] = %q, want %q", i, got.Scopes[i], s)
		}
	}
}

// A validly-signed token missing any one required claim is rejected.
func TestVerify_MissingRequiredClaims(t *testing.T) {
	key := testKey(t)
	v := testVerifier(key, false)

	for _, missing := range []string{"exp", "iat", "iss", "aud"} {
		claims := validClaims()
		delete(claims, missing)

		if got := v.Verify(sign(t, key, claims)); got != nil {
			t.Errorf("Verify() with missing %q = %+v, want nil", missing, got)
		}
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	key := testKey(t)
	claims := validClaims()
	claims["iss"] = "https://evil.example.com/"

	if got := testVerifier(key, false).Verify(sign(t, key, claims)); got != nil {
		t.Errorf("Verify() with wrong issuer = %+v, want nil", got)
	}
}

func TestVerify_WrongSigningKey(t *testing.T) {
	key := testKey(t)
	otherKey := testKey(t)

	tokenString := sign(t, otherKey, validClaims())
	if got := testVerifier(key, false).Verify(tokenString); got != nil {
		t.Errorf("Verify() with wrong-key signature = %+v, want nil", got)
	}
}

func TestVerify_Expired(t *testing.T) {
	key := testKey(t)
	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	if got := testVerifier(key, false).Verify(sign(t, key, claims)); got != nil {
		t.Errorf("Verify() with expired token = %+v, want nil", got)
	}
}

// The algorithm is pinned to RS256; a token claiming a different alg is
// rejected even if it would otherwise verify.
func TestVerify_RejectsNonRS256(t *testing.T) {
	key := testKey(t)

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).
		SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if got := testVerifier(key, false).Verify(tokenString); got != nil {
		t.Errorf("Verify() with HS256 token = %+v, want nil", got)
	}
}

func TestVerify_WrongAudience(t *testing.T) {
	key := testKey(t)
	claims := validClaims()
	claims["aud"] = "some-other-service"

	if got := testVerifier(key, false).Verify(sign(t, key, claims)); got != nil {
		t.Errorf("Verify() with wrong audience = %+v, want nil", got)
	}

	// The documented relaxation: audience mismatch is accepted only
	// when the skip flag is explicitly enabled.
	got := testVerifier(key, true).Verify(sign(t, key, claims))
	if got == nil {
		t.Fatal("Verify() with audience check disabled = nil, want a verified token")
	}
	if got.ClientID != "some-other-service" {
		t.Errorf("Verify().ClientID = %q, want %q", got.ClientID, "some-other-service")
	}
}

func TestVerify_Malformed(t *testing.T) {
	key := testKey(t)
	for _, tokenString := range []string{"", "garbage", "a.b.c"} {
		if got := testVerifier(key, false).Verify(tokenString); got != nil {
			t.Errorf("Verify(%q) = %+v, want nil", tokenString, got)
		}
	}
}
