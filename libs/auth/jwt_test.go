package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyHS256(t *testing.T) {
	claims := Claims{
		Sub:        "user-1",
		BusinessID: "biz-1",
		Role:       "staff",
		Exp:        time.Now().Add(time.Hour).Unix(),
		Iat:        time.Now().Unix(),
	}

	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := ParseAndVerifyHS256(token, "secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Sub != "user-1" || got.BusinessID != "biz-1" {
		t.Fatalf("unexpected claims: %+v", got)
	}
	if !got.IsStaff() {
		t.Fatal("expected staff role")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Exp: time.Now().Add(time.Hour).Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "other"); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Exp: time.Now().Add(-time.Minute).Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "secret"); err == nil {
		t.Fatal("expected expired token rejection")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "a.b", "not-a-token", "a.b.c.d"} {
		if _, err := ParseAndVerifyHS256(tok, "secret"); err == nil {
			t.Fatalf("expected rejection for %q", tok)
		}
	}
}
