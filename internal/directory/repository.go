package directory

import "context"

// Repository is the Directory public contract of spec.md §4.3.
type Repository interface {
	// UploadCoins idempotently inserts each upload for ownerID, skipping
	// any (owner_id, key_id) pair already present. Returns the count of
	// rows actually inserted, which may be less than len(coins).
	UploadCoins(ctx context.Context, ownerID string, coins []Upload) (int, error)

	// FetchCoins claims up to count unclaimed coins of tier for
	// targetOwnerID on behalf of requesterID, in upload order, and marks
	// them claimed in the same statement — a claimed coin is delivered to
	// exactly one requester even under concurrent fetches.
	FetchCoins(ctx context.Context, targetOwnerID, requesterID string, tier string, count int) ([]Record, error)

	// InventoryCount returns the unclaimed coin count per tier for
	// ownerID.
	InventoryCount(ctx context.Context, ownerID string) (InventoryCount, error)

	// PurgeStale deletes unclaimed rows uploaded more than maxAgeDays
	// ago. Returns the count deleted.
	PurgeStale(ctx context.Context, maxAgeDays int) (int64, error)

	// HardDeleteClaimed deletes claimed rows whose claim is older than
	// graceHours, once every requester has had time to actually fetch
	// the data out of the response. Returns the count deleted.
	HardDeleteClaimed(ctx context.Context, graceHours int) (int64, error)
}
