package auth

import (
	"testing"
	"time"
)

func TestSignAndParseJWT(t *testing.T) {
	token, err := SignJWT(42, "01ORG0000000000000000000000", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseJWT(token, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.OperatorID != 42 {
		t.Fatalf("operator id = %d, want 42", claims.OperatorID)
	}
	if claims.OrganizationID != "01ORG0000000000000000000000" {
		t.Fatalf("unexpected organization id: %q", claims.OrganizationID)
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, err := SignJWT(1, "org", "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, "secret-b"); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	token, err := SignJWT(1, "org", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "hunter3") {
		t.Fatalf("expected mismatch to fail")
	}
}
