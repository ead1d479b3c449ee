package inventory

import (
	"context"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
)

// Store is the Inventory public contract from spec.md §4.2.
type Store interface {
	// RegisterContact creates the contact's metadata record. Returns
	// (false, nil) — not an error — if the contact already exists.
	RegisterContact(ctx context.Context, contactID string, priority common.Priority, displayName string) (bool, error)

	// SetContactPriority changes a contact's priority. On a downgrade
	// (rank increases: BESTIE -> MATE -> STRANGER) it synchronously
	// trims each tier's index down to the new priority's cap, evicting
	// the newest entries first (ZPOPMAX), so the trim itself never race
	// with a concurrent StoreKey under the old, looser budget.
	SetContactPriority(ctx context.Context, contactID string, priority common.Priority) error

	// GetContactMeta returns (meta, true, nil) when the contact is
	// registered and (ContactMeta{}, false, nil) otherwise.
	GetContactMeta(ctx context.Context, contactID string) (ContactMeta, bool, error)

	// StoreKey caches one contact's public key under contact_id/tier,
	// enforcing the budget cap for the contact's current priority via an
	// optimistic-lock retry loop (WATCH/MULTI/EXEC). Returns
	// common.ErrNotRegistered if the contact is unknown, a
	// *common.BudgetExceededError if the tier is at or over cap, and
	// common.ErrConcurrencyError if every retry lost its race.
	StoreKey(ctx context.Context, contactID, keyID string, tier common.Tier, publicKey, signature []byte) error

	// SelectCoin returns the oldest cached entry for the contact at the
	// desired tier, falling back to lower tiers per common.Tier's
	// FallbackOrder when the desired tier is empty. Returns
	// (Entry{}, false, nil) when no keys are available at any fallback
	// tier.
	SelectCoin(ctx context.Context, contactID string, desiredTier common.Tier) (Entry, bool, error)

	// ConsumeKey removes a previously selected entry. Returns
	// (false, nil) if it was already gone.
	ConsumeKey(ctx context.Context, contactID, keyID string) (bool, error)

	// GetInventory returns a single contact's Summary.
	GetInventory(ctx context.Context, contactID string) (Summary, error)

	// GetAllInventory returns every registered contact's Summary, keyed
	// by contact ID. It scans with SCAN, not KEYS.
	GetAllInventory(ctx context.Context) (map[string]Summary, error)

	// HasKeysFor reports whether any tier holds a cached key for the
	// contact.
	HasKeysFor(ctx context.Context, contactID string) (bool, error)

	// GetAvailableTiers returns the tiers with at least one cached key,
	// in GOLD, SILVER, BRONZE order.
	GetAvailableTiers(ctx context.Context, contactID string) ([]common.Tier, error)

	// ListContactIDs scans every registered contact ID via SCAN, for
	// background maintenance passes (garbage collection, reporting).
	ListContactIDs(ctx context.Context) ([]string, error)

	// PurgeContactKeys deletes every cached key for contactID across all
	// three tiers, returning the count removed. It does not touch the
	// contact's metadata record or priority.
	PurgeContactKeys(ctx context.Context, contactID string) (int, error)
}
