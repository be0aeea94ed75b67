package history

import (
	"context"
	"time"
)

// Entry is one recorded characteristic change.
type Entry struct {
	ID             int64     `json:"id"`
	AccessoryID    string    `json:"accessory_id"`
	Service        string    `json:"service"`
	Characteristic string    `json:"characteristic"`
	Value          any       `json:"value"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository stores and retrieves characteristic change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record stores one change. A zero CreatedAt is set to now.
	Record(ctx context.Context, e Entry) error

	// GetHistory returns the newest entries for an accessory, optionally
	// restricted to one characteristic.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - accessoryID: Accessory identifier
	//   - characteristic: Characteristic type, or "" for all
	//   - limit: Maximum entries (default 50, max 200)
	//
	// Returns:
	//   - []Entry: Entries ordered newest first (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, accessoryID, characteristic string, limit int) ([]Entry, error)

	// Prune deletes entries older than now-olderThan and returns the count.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
