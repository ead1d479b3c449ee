// Package directory is the server-side claim pool: the only shared,
// multi-writer store in the system. Every operation except UploadCoins is a
// single SQL statement so the database, not application logic, owns
// atomicity; UploadCoins issues one INSERT per coin.
package directory

import (
	"time"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
)

// Upload is one public key offered to the Directory by its owning device.
type Upload struct {
	KeyID         string
	Tier          common.Tier
	PublicKeyBlob []byte
	SignatureBlob []byte
}

// Record is one claimed coin returned by FetchCoins: the public key plus
// enough to reconstruct an inventory.Entry on the requester's device.
type Record struct {
	KeyID         string
	Tier          common.Tier
	PublicKeyBlob []byte
	SignatureBlob []byte
}

// InventoryCount is the unclaimed coin count for one owner, per tier.
type InventoryCount struct {
	Gold   int64
	Silver int64
	Bronze int64
}

// Row is the full persisted representation of a directory_coins row. No
// Repository method returns it; they return Record and InventoryCount.
type Row struct {
	RecordID      int64
	OwnerID       string
	KeyID         string
	Tier          common.Tier
	PublicKeyBlob []byte
	SignatureBlob []byte
	UploadedAt    time.Time
	ClaimedBy     *string
	ClaimedAt     *time.Time
}
