package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// Setting keys for generated secrets.
const (
	SettingJWTSecret     = "jwt_secret"
	SettingSigningSecret = "object_signing_secret"
)

// GetJWTSecret returns the secret used to sign session tokens.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	return ensureSecret(ctx, db, SettingJWTSecret)
}

// GetSigningSecret returns the secret used to sign object download URLs.
// It is never the session secret.
func GetSigningSecret(ctx context.Context, db *sql.DB) (string, error) {
	return ensureSecret(ctx, db, SettingSigningSecret)
}

// ensureSecret returns the stored secret for key, generating it on first use.
// INSERT OR IGNORE + re-SELECT avoids a race on concurrent startup.
func ensureSecret(ctx context.Context, db *sql.DB, key string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", key, err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	// Always read back (either our insert or the existing value).
	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}

	return secret, nil
}
