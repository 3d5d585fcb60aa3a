package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/lostfound/internal/model"
)

const claimColumns = `id, item_id, item_title, claimed_by, message, status, meetup_address,
	created_at, decided_at, received_at`

func scanClaim(row rowScanner) (*model.Claim, error) {
	c := &model.Claim{}
	var createdAt string
	var decidedAt, receivedAt sql.NullString
	err := row.Scan(&c.ID, &c.ItemID, &c.ItemTitle, &c.ClaimedBy, &c.Message, &c.Status,
		&c.MeetupAddress, &createdAt, &decidedAt, &receivedAt)
	if err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.DecidedAt, err = parseNullTime(decidedAt); err != nil {
		return nil, err
	}
	if c.ReceivedAt, err = parseNullTime(receivedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateClaim inserts a pending claim. The insert selects from the item row
// so it only happens while the item is an unclaimed found item.
func (s *SQLStore) CreateClaim(ctx context.Context, c *model.Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Status = model.ClaimPending

	result, err := s.q.ExecContext(ctx,
		`INSERT INTO claims (id, item_id, item_title, claimed_by, message, status, created_at)
		 SELECT ?, id, title, ?, ?, ?, ? FROM items
		 WHERE id = ? AND status = ? AND claimed = 0`,
		c.ID, c.ClaimedBy, c.Message, c.Status, formatTime(c.CreatedAt),
		c.ItemID, model.ItemStatusFound,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating claim: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating claim: %w", err)
	}
	if n == 0 {
		return ErrItemUnavailable
	}

	// Fill in the denormalized title the insert copied.
	return s.q.QueryRowContext(ctx,
		`SELECT item_title FROM claims WHERE id = ?`, c.ID,
	).Scan(&c.ItemTitle)
}

// GetClaim returns a claim by ID.
func (s *SQLStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	c, err := scanClaim(s.q.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	return c, nil
}

// ListClaims returns claims matching the filter, newest first.
func (s *SQLStore) ListClaims(ctx context.Context, f ClaimFilter) ([]model.Claim, error) {
	var where []string
	var args []any

	if f.ItemID != "" {
		where = append(where, "item_id = ?")
		args = append(args, f.ItemID)
	}
	if f.ClaimedBy != "" {
		where = append(where, "claimed_by = ?")
		args = append(args, f.ClaimedBy)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.ByDecision {
		query += ` ORDER BY COALESCE(decided_at, created_at) DESC, id DESC`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	return s.queryClaims(ctx, query, args...)
}

func (s *SQLStore) queryClaims(ctx context.Context, query string, args ...any) ([]model.Claim, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// TransitionClaim moves a claim from one status to another if its current
// status still equals from.
func (s *SQLStore) TransitionClaim(ctx context.Context, id, from, to string, upd ClaimUpdate) (bool, error) {
	set := []string{"status = ?"}
	args := []any{to}

	switch {
	case upd.Reset:
		set = append(set, "meetup_address = ''", "decided_at = NULL")
	case upd.MeetupAddress != "":
		set = append(set, "meetup_address = ?")
		args = append(args, upd.MeetupAddress)
	}
	if upd.DecidedAt != nil && !upd.Reset {
		set = append(set, "decided_at = ?")
		args = append(args, formatTime(*upd.DecidedAt))
	}
	if upd.ReceivedAt != nil {
		set = append(set, "received_at = ?")
		args = append(args, formatTime(*upd.ReceivedAt))
	}
	args = append(args, id, from)

	result, err := s.q.ExecContext(ctx,
		`UPDATE claims SET `+strings.Join(set, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicate
		}
		return false, fmt.Errorf("updating claim status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating claim status: %w", err)
	}
	return n == 1, nil
}

// DeleteClaimsForItem removes every claim on an item.
func (s *SQLStore) DeleteClaimsForItem(ctx context.Context, itemID string) (int, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM claims WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("deleting claims: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting claims: %w", err)
	}
	return int(n), nil
}

// ListReceivedBefore returns received claims older than cutoff. Claims
// written before received_at existed fall back to created_at.
func (s *SQLStore) ListReceivedBefore(ctx context.Context, cutoff time.Time) ([]model.Claim, error) {
	return s.queryClaims(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE status = ? AND COALESCE(received_at, created_at) < ?
		 ORDER BY COALESCE(received_at, created_at), id`,
		model.ClaimReceived, formatTime(cutoff),
	)
}
