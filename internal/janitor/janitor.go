// Package janitor removes items whose hand-over finished long enough ago.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/erazemk/lostfound/internal/store"
)

// DefaultRetention is how long a received item is kept before removal.
const DefaultRetention = 7 * 24 * time.Hour

// LastSweepKey is the setting holding the time of the last completed sweep.
const LastSweepKey = "janitor.last_sweep"

// Janitor deletes received items and their claims once the retention window
// has passed.
type Janitor struct {
	Store store.Store
	Now   func() time.Time
	Log   *slog.Logger
}

// New creates a Janitor with the real clock and the default logger.
func New(s store.Store) *Janitor {
	return &Janitor{
		Store: s,
		Now:   func() time.Time { return time.Now().UTC() },
		Log:   slog.Default(),
	}
}

// Result summarizes one sweep.
type Result struct {
	DeletedItems  int       `json:"deletedItems"`
	DeletedClaims int       `json:"deletedClaims"`
	Failed        int       `json:"failed"`
	Cutoff        time.Time `json:"cutoff"`
}

// Preview describes what a sweep would remove.
type Preview struct {
	Due       int        `json:"due"`
	Oldest    *time.Time `json:"oldest,omitempty"`
	Cutoff    time.Time  `json:"cutoff"`
	LastSweep *time.Time `json:"lastSweep,omitempty"`
}

// Sweep deletes every item with a claim received before now minus window,
// together with all claims on it. A failure on one item is logged and the
// sweep moves on to the next.
func (j *Janitor) Sweep(ctx context.Context, window time.Duration) (Result, error) {
	if window <= 0 {
		window = DefaultRetention
	}
	now := j.Now()
	res := Result{Cutoff: now.Add(-window)}

	due, err := j.Store.ListReceivedBefore(ctx, res.Cutoff)
	if err != nil {
		return res, err
	}

	done := map[string]bool{}
	for _, c := range due {
		if done[c.ItemID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := j.Store.DeleteItem(ctx, c.ItemID); err != nil {
			j.Log.Warn("cleanup: deleting item failed", "item", c.ItemID, "claim", c.ID, "error", err)
			res.Failed++
			continue
		}
		n, err := j.Store.DeleteClaimsForItem(ctx, c.ItemID)
		if err != nil {
			// The item is gone already; remaining claims are retried next
			// sweep since they still match.
			j.Log.Warn("cleanup: deleting claims failed", "item", c.ItemID, "error", err)
			res.Failed++
			continue
		}
		done[c.ItemID] = true
		res.DeletedItems++
		res.DeletedClaims += n
	}

	if err := j.Store.SetSetting(ctx, LastSweepKey, now.Format(time.RFC3339Nano)); err != nil {
		j.Log.Warn("cleanup: recording sweep time failed", "error", err)
	}

	if res.DeletedItems > 0 || res.Failed > 0 {
		j.Log.Info("cleanup finished", "items", res.DeletedItems, "claims", res.DeletedClaims, "failed", res.Failed)
	}
	return res, nil
}

// Preview reports what Sweep would delete without deleting anything.
func (j *Janitor) Preview(ctx context.Context, window time.Duration) (Preview, error) {
	if window <= 0 {
		window = DefaultRetention
	}
	p := Preview{Cutoff: j.Now().Add(-window)}

	due, err := j.Store.ListReceivedBefore(ctx, p.Cutoff)
	if err != nil {
		return p, err
	}
	items := map[string]bool{}
	for _, c := range due {
		items[c.ItemID] = true
	}
	p.Due = len(items)
	if len(due) > 0 {
		oldest := due[0].CreatedAt
		if due[0].ReceivedAt != nil {
			oldest = *due[0].ReceivedAt
		}
		p.Oldest = &oldest
	}

	raw, ok, err := j.Store.GetSetting(ctx, LastSweepKey)
	if err != nil {
		return p, err
	}
	if ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			p.LastSweep = &t
		}
	}
	return p, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval, window time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	j.sweepLogged(ctx, window)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweepLogged(ctx, window)
		}
	}
}

func (j *Janitor) sweepLogged(ctx context.Context, window time.Duration) {
	if _, err := j.Sweep(ctx, window); err != nil && ctx.Err() == nil {
		j.Log.Error("cleanup sweep failed", "error", err)
	}
}
