package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte(strings.Repeat("k", 32))

func sign(t *testing.T, method jwt.SigningMethod, key any, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleAuthenticated,
	}
}

func TestSecretVerifier_Valid(t *testing.T) {
	v, err := NewSecretVerifier(testSecret, "authenticated")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c, err := v.Verify(context.Background(), sign(t, jwt.SigningMethodHS256, testSecret, validClaims()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Subject != "user-1" {
		t.Fatalf("subject=%q", c.Subject)
	}
}

func TestSecretVerifier_Rejects(t *testing.T) {
	v, _ := NewSecretVerifier(testSecret, "authenticated")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	anon := validClaims()
	anon.Role = "anon"

	noSub := validClaims()
	noSub.Subject = ""

	noExp := validClaims()
	noExp.ExpiresAt = nil

	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"service_role"}

	cases := map[string]string{
		"expired":      sign(t, jwt.SigningMethodHS256, testSecret, expired),
		"anonymous":    sign(t, jwt.SigningMethodHS256, testSecret, anon),
		"no subject":   sign(t, jwt.SigningMethodHS256, testSecret, noSub),
		"no expiry":    sign(t, jwt.SigningMethodHS256, testSecret, noExp),
		"wrong aud":    sign(t, jwt.SigningMethodHS256, testSecret, wrongAud),
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte(strings.Repeat("x", 32)), validClaims()),
		"wrong alg":    sign(t, jwt.SigningMethodHS512, testSecret, validClaims()),
		"garbage":      "not.a.jwt",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("want ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestNewVerifiers_EmptyInput(t *testing.T) {
	if _, err := NewSecretVerifier(nil, ""); err == nil {
		t.Fatalf("empty secret should fail")
	}
	if _, err := NewJWKSVerifier(context.Background(), " ", ""); err == nil {
		t.Fatalf("empty JWKS URL should fail")
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := BearerToken(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("BearerToken(%q)=(%q,%v) want (%q,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
