package rpc

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "jwt-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestAdminAcceptsScopedJWT(t *testing.T) {
	env := newTestEnv(t, Options{JWTSecret: testJWTSecret, JWTIssuer: "ops"})
	params := map[string]string{"owner": maker.Hex(), "asset": usdc.Hex(), "amount": "7"}
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		token  string
		wantOK bool
	}{
		{"scoped", signToken(t, jwt.MapClaims{"iss": "ops", "exp": exp, "scope": "read " + AdminScope}, testJWTSecret), true},
		{"scope list", signToken(t, jwt.MapClaims{"iss": "ops", "exp": exp, "scope": []string{AdminScope}}, testJWTSecret), true},
		{"missing scope", signToken(t, jwt.MapClaims{"iss": "ops", "exp": exp, "scope": "read"}, testJWTSecret), false},
		{"wrong issuer", signToken(t, jwt.MapClaims{"iss": "other", "exp": exp, "scope": AdminScope}, testJWTSecret), false},
		{"expired", signToken(t, jwt.MapClaims{"iss": "ops", "exp": time.Now().Add(-time.Hour).Unix(), "scope": AdminScope}, testJWTSecret), false},
		{"no expiry", signToken(t, jwt.MapClaims{"iss": "ops", "scope": AdminScope}, testJWTSecret), false},
		{"wrong secret", signToken(t, jwt.MapClaims{"iss": "ops", "exp": exp, "scope": AdminScope}, "nope"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, res := env.post("ledger_deposit", params, tc.token)
			if tc.wantOK && res.Error != nil {
				t.Fatalf("expected success, got %+v", res.Error)
			}
			if !tc.wantOK && (res.Error == nil || res.Error.Code != codeUnauthorized) {
				t.Fatalf("expected unauthorized, got %+v", res.Error)
			}
		})
	}
}

func TestHasScope(t *testing.T) {
	if !hasScope("a rfq:admin", AdminScope) || !hasScope([]interface{}{"x", AdminScope}, AdminScope) {
		t.Fatalf("expected scope match")
	}
	if hasScope(nil, AdminScope) || hasScope("rfq:admins", AdminScope) {
		t.Fatalf("unexpected scope match")
	}
}
