package store

import (
	"context"
	"testing"

	"github.com/erazemk/omara/internal/db"
)

func TestSecretsGenerateAndPersist(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}

	signing, err := GetSigningSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if signing == secret1 {
		t.Error("expected signing secret to differ from jwt secret")
	}
}
