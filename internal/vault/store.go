package vault

import (
	"context"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
)

// Store is the Vault public contract from spec.md §4.1. Implementations
// must make StoreKey, BurnKey, and PurgeExpired atomic with respect to
// their counter updates: a concurrent FetchKey observes either the
// before-state or the after-state, never a partial one.
type Store interface {
	// StoreKey creates a new ACTIVE entry. Returns common.ErrAlreadyExists
	// if key_id is already present, common.ErrInvalidTier on an unknown
	// tier.
	StoreKey(ctx context.Context, keyID string, tier common.Tier, encryptedBlob, iv, authTag []byte, coinVersion string) error

	// FetchKey is a pure read. It returns (entry, true, nil) when present
	// and ACTIVE, and (Entry{}, false, nil) — a positive absence, not an
	// error — when the key is absent or BURNED.
	FetchKey(ctx context.Context, keyID string) (Entry, bool, error)

	// BurnKey atomically transitions an ACTIVE entry to BURNED, shortens
	// its TTL to the burn-grace window, and updates the counters. Returns
	// common.ErrNotFound if absent, common.ErrAlreadyBurned if already
	// BURNED.
	BurnKey(ctx context.Context, keyID string) error

	// CountActive returns the active-entry count for a single tier.
	CountActive(ctx context.Context, tier common.Tier) (int64, error)

	// CountActiveAll returns the active-entry count for every tier.
	CountActiveAll(ctx context.Context) (map[common.Tier]int64, error)

	// Exists is a fast existence check (present, regardless of status).
	Exists(ctx context.Context, keyID string) (bool, error)

	// GetAllActiveIDs is a background-only O(n) scan. tier == "" scans
	// every tier.
	GetAllActiveIDs(ctx context.Context, tier common.Tier) ([]string, error)

	// PurgeExpired removes ACTIVE entries older than maxAge and updates
	// the counters accordingly. It is a safety net for lost TTLs, not the
	// primary expiry mechanism.
	PurgeExpired(ctx context.Context, maxAge int64) (int, error)

	// GetStats returns the current aggregate counters.
	GetStats(ctx context.Context) (Stats, error)
}
