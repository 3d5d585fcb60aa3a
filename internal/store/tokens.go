package store

import (
	"context"
	"fmt"
	"time"
)

// RevokeToken adds a credential key to the revocation list.
func (s *SQLStore) RevokeToken(ctx context.Context, key string, expiresAt time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (token_key, expires_at) VALUES (?, ?)`,
		key, formatTime(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	// Opportunistically clean up expired revocations.
	_, _ = s.q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, formatTime(time.Now()),
	)

	return nil
}

// IsTokenRevoked checks if a credential key has been revoked.
func (s *SQLStore) IsTokenRevoked(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE token_key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}
