// Package vault stores the private halves of minted single-use key pairs
// with burn-after-use semantics. It is exclusively owned by the recipient
// device from creation until burn or expiry.
package vault

import (
	"time"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
)

// Entry is one private key record: the VaultEntry of spec.md §3.
type Entry struct {
	KeyID         string
	Tier          common.Tier
	EncryptedBlob []byte
	IV            []byte
	AuthTag       []byte
	Status        common.VaultStatus
	CreatedAt     time.Time
	CoinVersion   string
}

// Stats is the aggregate counters of spec.md §3's VaultStats: at any instant
// they must equal the actual populations, maintained by every mutation
// being atomic with its counter delta.
type Stats struct {
	ActiveGold   int64
	ActiveSilver int64
	ActiveBronze int64
	TotalBurned  int64
	TotalExpired int64
}

// ActiveCount returns the active counter for the given tier, or 0 for an
// unknown tier.
func (s Stats) ActiveCount(t common.Tier) int64 {
	switch t {
	case common.TierGold:
		return s.ActiveGold
	case common.TierSilver:
		return s.ActiveSilver
	case common.TierBronze:
		return s.ActiveBronze
	default:
		return 0
	}
}
