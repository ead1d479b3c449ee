// Package gc reclaims cached keys for contacts that have gone quiet,
// downgrading them to STRANGER so their budget shrinks to zero on next
// use.
package gc

import (
	"context"
	"time"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/inventory"
)

// Result is the outcome of a collection pass: the GCResult of spec.md §3.
type Result struct {
	ContactsCleaned int
	KeysDeleted     int
	BytesFreed      int64
}

// Collector runs garbage collection over an Inventory store.
type Collector struct {
	inventory inventory.Store
}

// New constructs a Collector bound to the given Inventory.
func New(inv inventory.Store) *Collector {
	return &Collector{inventory: inv}
}

func isInactive(lastMsgAt int64, inactiveDays int) bool {
	cutoff := time.Now().Add(-time.Duration(inactiveDays) * 24 * time.Hour).UnixMilli()
	return lastMsgAt < cutoff
}

func estimateBytes(summary inventory.Summary) int64 {
	return summary.GoldCount*int64(common.CoinSizeBytes[common.TierGold]) +
		summary.SilverCount*int64(common.CoinSizeBytes[common.TierSilver]) +
		summary.BronzeCount*int64(common.CoinSizeBytes[common.TierBronze])
}

// GarbageCollect walks every registered contact and, for any inactive
// longer than inactiveDays, purges its cached keys and downgrades it to
// STRANGER.
func (c *Collector) GarbageCollect(ctx context.Context, inactiveDays int) (Result, error) {
	ids, err := c.inventory.ListContactIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, contactID := range ids {
		meta, ok, err := c.inventory.GetContactMeta(ctx, contactID)
		if err != nil {
			return result, err
		}
		if !ok || !isInactive(meta.LastMsgAt, inactiveDays) {
			continue
		}

		summary, err := c.inventory.GetInventory(ctx, contactID)
		if err != nil {
			return result, err
		}
		result.BytesFreed += estimateBytes(summary)

		deleted, err := c.inventory.PurgeContactKeys(ctx, contactID)
		if err != nil {
			return result, err
		}
		result.KeysDeleted += deleted

		if err := c.inventory.SetContactPriority(ctx, contactID, common.PriorityStranger); err != nil {
			return result, err
		}
		result.ContactsCleaned++
	}
	return result, nil
}

// CollectSingleContact runs the same reclamation as GarbageCollect for one
// contact, regardless of its activity — used when a caller already knows
// the contact should be dropped (e.g. explicit unfriend).
func (c *Collector) CollectSingleContact(ctx context.Context, contactID string) (Result, error) {
	if _, ok, err := c.inventory.GetContactMeta(ctx, contactID); err != nil {
		return Result{}, err
	} else if !ok {
		return Result{}, common.ErrNotRegistered
	}

	summary, err := c.inventory.GetInventory(ctx, contactID)
	if err != nil {
		return Result{}, err
	}
	bytesFreed := estimateBytes(summary)

	deleted, err := c.inventory.PurgeContactKeys(ctx, contactID)
	if err != nil {
		return Result{}, err
	}
	if err := c.inventory.SetContactPriority(ctx, contactID, common.PriorityStranger); err != nil {
		return Result{}, err
	}

	return Result{ContactsCleaned: 1, KeysDeleted: deleted, BytesFreed: bytesFreed}, nil
}

// DryRun reports what GarbageCollect would reclaim without deleting or
// downgrading anything.
func (c *Collector) DryRun(ctx context.Context, inactiveDays int) (Result, error) {
	ids, err := c.inventory.ListContactIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, contactID := range ids {
		meta, ok, err := c.inventory.GetContactMeta(ctx, contactID)
		if err != nil {
			return result, err
		}
		if !ok || !isInactive(meta.LastMsgAt, inactiveDays) {
			continue
		}

		summary, err := c.inventory.GetInventory(ctx, contactID)
		if err != nil {
			return result, err
		}
		result.KeysDeleted += int(summary.GoldCount + summary.SilverCount + summary.BronzeCount)
		result.BytesFreed += estimateBytes(summary)
		result.ContactsCleaned++
	}
	return result, nil
}
