package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"admin-alerts/api"
)

func TestGeneratedTokensVerify(t *testing.T) {
	secret := []byte("s3cret")
	tokens, err := generateTokens(secret, "admin-alerts", "ops", "Ops Team", 2, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(tokens) != 2 || tokens[0] == tokens[1] {
		t.Fatalf("expected two distinct tokens")
	}
	auth := api.NewAuth(api.AuthConfig{Secret: secret, Audience: "admin-alerts"})
	admin, err := auth.AdminFromAuthHeader("Bearer " + tokens[0])
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if admin != "Ops Team" {
		t.Fatalf("unexpected admin %q", admin)
	}
}

func TestGenerateTokensRejectsBadTTL(t *testing.T) {
	if _, err := generateTokens([]byte("s"), "", "a", "", 1, 0, time.Now()); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

func TestWriteTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	if err := writeTokens(path, []string{"a.b.c"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != `["a.b.c"]` {
		t.Fatalf("unexpected file %q", data)
	}
}
