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

const itemColumns = `id, title, description, status, category, location, image_url, created_at,
	reported_by, reporter_name, reporter_email, claimed, claimed_by, approved`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var createdAt string
	var claimed, approved int
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Status, &item.Category,
		&item.Location, &item.ImageURL, &createdAt, &item.ReportedBy, &item.Reporter.Name,
		&item.Reporter.Email, &claimed, &item.ClaimedBy, &approved)
	if err != nil {
		return nil, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	item.Claimed = claimed != 0
	item.Approved = approved != 0
	return item, nil
}

// CreateItem inserts a new item, assigning an id and creation time if unset.
func (s *SQLStore) CreateItem(ctx context.Context, item *model.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (`+placeholders(14)+`)`,
		item.ID, item.Title, item.Description, item.Status, item.Category, item.Location,
		item.ImageURL, formatTime(item.CreatedAt), item.ReportedBy, item.Reporter.Name,
		item.Reporter.Email, boolInt(item.Claimed), item.ClaimedBy, boolInt(item.Approved),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating item: %w", err)
	}
	return nil
}

// GetItem returns an item by ID.
func (s *SQLStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	item, err := scanItem(s.q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items newest first.
func (s *SQLStore) ListItems(ctx context.Context, f ItemFilter) ([]model.Item, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.UnclaimedOnly {
		where = append(where, "claimed = 0")
	}
	if f.Owner != nil {
		where = append(where, "(reported_by = ? OR (? <> '' AND lower(reporter_email) = lower(?)))")
		args = append(args, f.Owner.UserID, f.Owner.Email, f.Owner.Email)
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// MarkItemClaimed flags an unclaimed item as claimed by the given user.
func (s *SQLStore) MarkItemClaimed(ctx context.Context, id, claimedBy string) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE items SET claimed = 1, approved = 1, claimed_by = ?
		 WHERE id = ? AND claimed = 0`,
		claimedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking item claimed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking item claimed: %w", err)
	}
	return n == 1, nil
}

// ReleaseItemClaim clears the claimed flags on an item.
func (s *SQLStore) ReleaseItemClaim(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE items SET claimed = 0, approved = 0, claimed_by = '' WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("releasing item claim: %w", err)
	}
	return nil
}

// DeleteItem removes an item permanently.
func (s *SQLStore) DeleteItem(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// SetItemImage stores an item's image and the URL it is served from.
func (s *SQLStore) SetItemImage(ctx context.Context, id string, data []byte, mime, url string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, image_url = ? WHERE id = ?`,
		data, mime, url, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func (s *SQLStore) GetItemImage(ctx context.Context, id string) ([]byte, string, error) {
	var data []byte
	var mime sql.NullString
	err := s.q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return data, mime.String, nil
}
