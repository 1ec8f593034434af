package security_test

import (
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}

	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword returned empty string")
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	if _, err := security.VerifyPassword("irrelevant", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
	hash, err := security.HashPassword("another-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if security.NeedsRehash(hash, cfg) {
		t.Fatal("fresh hash should not need a rehash")
	}

	stronger := cfg
	stronger.ArgonTime = 2
	if !security.NeedsRehash(hash, stronger) {
		t.Fatal("hash with older time cost should need a rehash")
	}
	if !security.NeedsRehash("garbage", cfg) {
		t.Fatal("malformed hash should need a rehash")
	}
}

func TestVerifyPasswordRejectsTamperedHashes(t *testing.T) {
	hash, err := security.HashPassword("tamper-me", config.PasswordConfig{})
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	for name, bad := range map[string]string{
		"version":   strings.Replace(hash, "v=19", "v=16", 1),
		"params":    strings.Replace(hash, "m=", "mem=", 1),
		"empty key": hash[:strings.LastIndex(hash, "$")+1],
		"prefix":    "x" + hash,
	} {
		if _, err := security.VerifyPassword("tamper-me", bad); err == nil {
			t.Errorf("%s: expected malformed hash error", name)
		}
	}
}
