// Package inventory caches the public halves of contacts' keys locally,
// under a per-priority, per-tier budget, so a device can address a
// contact without a round trip to the Directory.
package inventory

import "github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"

// Entry is one cached public key: the InventoryEntry of spec.md §3.
type Entry struct {
	ContactID string
	KeyID     string
	Tier      common.Tier
	PublicKey []byte
	Signature []byte
	FetchedAt int64 // unix millis
}

// ContactMeta is a contact's local bookkeeping record: its priority tier
// governs the budget caps applied to StoreKey and SetContactPriority.
type ContactMeta struct {
	ContactID   string
	Priority    common.Priority
	LastMsgAt   int64 // unix millis
	DisplayName string
}

// Summary is the per-contact inventory snapshot returned by GetInventory.
type Summary struct {
	ContactID   string
	GoldCount   int64
	SilverCount int64
	BronzeCount int64
	Priority    common.Priority
}
