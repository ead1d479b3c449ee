// Package bridge connects the device-local Vault and Inventory to the
// shared Directory: minted keys flow out through UploadCoins, and a
// contact's keys flow in through FetchAndCache and SyncInventory.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/directory"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/inventory"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/vault"
)

// Bridge wires one device's Vault and Inventory to the shared Directory. It
// holds no state of its own beyond the three stores.
type Bridge struct {
	Directory directory.Repository
	Inventory inventory.Store
	Vault     vault.Store
}

// New constructs a Bridge over the given stores.
func New(dir directory.Repository, inv inventory.Store, v vault.Store) *Bridge {
	return &Bridge{Directory: dir, Inventory: inv, Vault: v}
}

// MintedCoin is a freshly minted key pair, its private half destined for
// the local Vault and its public half destined for the shared Directory.
type MintedCoin struct {
	KeyID       string
	Tier        common.Tier
	CoinVersion string

	// Private half, stored into the Vault.
	EncryptedBlob []byte
	IV            []byte
	AuthTag       []byte

	// Public half, uploaded to the Directory.
	PublicKeyBlob []byte
	SignatureBlob []byte
}

// UploadCoins stores the private half of each minted coin in the Vault,
// then uploads the public halves to the Directory on behalf of ownerID.
// If Vault storage fails for any entry, the whole batch is aborted before
// anything reaches the Directory — a coin whose public half is on the
// server with no matching private half in the Vault could never be
// decrypted by anyone, so no partial upload is better than aborting. A
// coin already stored in the Vault by an earlier, since-retried attempt is
// not an error: ErrAlreadyExists from the Vault is treated as "already
// durable" and the batch proceeds.
func (b *Bridge) UploadCoins(ctx context.Context, ownerID string, coins []MintedCoin) (int, error) {
	for _, c := range coins {
		err := b.Vault.StoreKey(ctx, c.KeyID, c.Tier, c.EncryptedBlob, c.IV, c.AuthTag, c.CoinVersion)
		if err != nil && !errors.Is(err, common.ErrAlreadyExists) {
			return 0, fmt.Errorf("bridge: vault store failed, aborting upload batch: %w", err)
		}
	}

	uploads := make([]directory.Upload, len(coins))
	for i, c := range coins {
		uploads[i] = directory.Upload{
			KeyID:         c.KeyID,
			Tier:          c.Tier,
			PublicKeyBlob: c.PublicKeyBlob,
			SignatureBlob: c.SignatureBlob,
		}
	}
	return b.Directory.UploadCoins(ctx, ownerID, uploads)
}

// FetchAndCache claims up to count coins of tier from targetOwnerID's
// Directory pool on behalf of requesterID, and caches each one locally
// under contactID. A coin that is fetched but then rejected by the
// Inventory's budget enforcement is left uncached — it has already been
// claimed and removed from the Directory, so it is not retried; the
// caller sees it missing from the returned slice.
func (b *Bridge) FetchAndCache(ctx context.Context, contactID, targetOwnerID, requesterID string, tier common.Tier, count int) ([]directory.Record, error) {
	coins, err := b.Directory.FetchCoins(ctx, targetOwnerID, requesterID, string(tier), count)
	if err != nil {
		return nil, err
	}

	cached := make([]directory.Record, 0, len(coins))
	for _, coin := range coins {
		err := b.Inventory.StoreKey(ctx, contactID, coin.KeyID, coin.Tier, coin.PublicKeyBlob, coin.SignatureBlob)
		if err != nil {
			var budgetErr *common.BudgetExceededError
			if errors.As(err, &budgetErr) {
				break
			}
			return cached, err
		}
		cached = append(cached, coin)
	}
	return cached, nil
}

// SyncInventory tops up contactID's cached keys for every tier up to their
// priority's budget cap, fetching only the deficit from targetOwnerID's
// Directory pool. Returns the count actually fetched per tier. An
// unregistered contact yields all-zero counts rather than an error.
func (b *Bridge) SyncInventory(ctx context.Context, contactID, targetOwnerID, requesterID string) (map[common.Tier]int, error) {
	zero := map[common.Tier]int{common.TierGold: 0, common.TierSilver: 0, common.TierBronze: 0}

	meta, ok, err := b.Inventory.GetContactMeta(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return zero, nil
	}

	summary, err := b.Inventory.GetInventory(ctx, contactID)
	if err != nil {
		return nil, err
	}

	caps := common.BudgetCaps[meta.Priority]
	current := map[common.Tier]int64{
		common.TierGold:   summary.GoldCount,
		common.TierSilver: summary.SilverCount,
		common.TierBronze: summary.BronzeCount,
	}

	fetched := make(map[common.Tier]int, len(common.Tiers))
	for _, tier := range common.Tiers {
		deficit := int64(caps[tier]) - current[tier]
		if deficit <= 0 {
			fetched[tier] = 0
			continue
		}
		cached, err := b.FetchAndCache(ctx, contactID, targetOwnerID, requesterID, tier, int(deficit))
		if err != nil {
			return nil, err
		}
		fetched[tier] = len(cached)
	}
	return fetched, nil
}
