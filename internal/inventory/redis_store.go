package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
)

const (
	metaPrefix = "inv:v1:meta"
	idxPrefix  = "inv:v1:idx"
	keyPrefix  = "inv:v1:key"
)

func metaKey(contactID string) string {
	return metaPrefix + ":" + contactID
}

func idxKey(contactID string, tier common.Tier) string {
	return idxPrefix + ":" + contactID + ":" + string(tier)
}

func invKey(contactID, keyID string) string {
	return keyPrefix + ":" + contactID + ":" + keyID
}

// RedisStore is the Store implementation backing a single device's
// Inventory: a per-contact metadata hash, one sorted-set FIFO index per
// tier scored by fetch time, and one hash per cached entry.
type RedisStore struct {
	rdb         *redis.Client
	lockRetries int
}

// NewRedisStore constructs a RedisStore. lockRetries bounds the
// WATCH/MULTI/EXEC retry loop in StoreKey.
func NewRedisStore(rdb *redis.Client, lockRetries int) *RedisStore {
	if lockRetries <= 0 {
		lockRetries = 3
	}
	return &RedisStore{rdb: rdb, lockRetries: lockRetries}
}

func (s *RedisStore) getPriority(ctx context.Context, contactID string) (common.Priority, error) {
	val, err := s.rdb.HGet(ctx, metaKey(contactID), "priority").Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("inventory: %w: %s", common.ErrNotRegistered, contactID)
	}
	if err != nil {
		return "", fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	return common.Priority(val), nil
}

func (s *RedisStore) RegisterContact(ctx context.Context, contactID string, priority common.Priority, displayName string) (bool, error) {
	if !priority.Valid() {
		return false, fmt.Errorf("inventory: %w: %s", common.ErrInvalidPriority, priority)
	}
	mk := metaKey(contactID)
	exists, err := s.rdb.Exists(ctx, mk).Result()
	if err != nil {
		return false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	if exists == 1 {
		return false, nil
	}
	err = s.rdb.HSet(ctx, mk, map[string]any{
		"contact_id":   contactID,
		"priority":     string(priority),
		"display_name": displayName,
		"last_msg_at":  strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Err()
	if err != nil {
		return false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	return true, nil
}

// SetContactPriority: a downgrade (new rank > old rank) synchronously
// trims every tier's index down to the new cap via ZPOPMAX, deleting the
// evicted entries' hashes.
func (s *RedisStore) SetContactPriority(ctx context.Context, contactID string, priority common.Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("inventory: %w: %s", common.ErrInvalidPriority, priority)
	}
	old, err := s.getPriority(ctx, contactID)
	if err != nil {
		return err
	}
	if old == priority {
		return nil
	}
	if err := s.rdb.HSet(ctx, metaKey(contactID), "priority", string(priority)).Err(); err != nil {
		return fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	if priority.IsDowngradeFrom(old) {
		return s.trimExcess(ctx, contactID, priority)
	}
	return nil
}

func (s *RedisStore) trimExcess(ctx context.Context, contactID string, priority common.Priority) error {
	caps := common.BudgetCaps[priority]
	for _, tier := range common.Tiers {
		idx := idxKey(contactID, tier)
		count, err := s.rdb.ZCard(ctx, idx).Result()
		if err != nil {
			return fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
		}
		excess := count - int64(caps[tier])
		if excess <= 0 {
			continue
		}
		removed, err := s.rdb.ZPopMax(ctx, idx, excess).Result()
		if err != nil {
			return fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
		}
		if len(removed) == 0 {
			continue
		}
		pipe := s.rdb.Pipeline()
		for _, z := range removed {
			keyID, _ := z.Member.(string)
			pipe.Del(ctx, invKey(contactID, keyID))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *RedisStore) GetContactMeta(ctx context.Context, contactID string) (ContactMeta, bool, error) {
	res, err := s.rdb.HGetAll(ctx, metaKey(contactID)).Result()
	if err != nil {
		return ContactMeta{}, false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	if len(res) == 0 {
		return ContactMeta{}, false, nil
	}
	lastMsg, _ := strconv.ParseInt(res["last_msg_at"], 10, 64)
	return ContactMeta{
		ContactID:   res["contact_id"],
		Priority:    common.Priority(res["priority"]),
		LastMsgAt:   lastMsg,
		DisplayName: res["display_name"],
	}, true, nil
}

// StoreKey is an optimistic-lock loop: WATCH the tier's index and the
// contact's meta hash, check the cap for the current priority, and commit
// the write in a MULTI/EXEC that aborts if either changed underneath it.
func (s *RedisStore) StoreKey(ctx context.Context, contactID, keyID string, tier common.Tier, publicKey, signature []byte) error {
	if !tier.Valid() {
		return fmt.Errorf("inventory: %w: %s", common.ErrInvalidTier, tier)
	}
	priority, err := s.getPriority(ctx, contactID)
	if err != nil {
		return err
	}
	cap, ok := common.BudgetCaps[priority][tier]
	if !ok || cap == 0 {
		return common.NewBudgetExceededError(contactID, string(tier), 0, 0)
	}

	idx := idxKey(contactID, tier)
	ik := invKey(contactID, keyID)
	fetchedAt := time.Now().UnixMilli()

	for attempt := 0; attempt < s.lockRetries; attempt++ {
		txErr := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			// Re-read the priority under WATCH so a concurrent
			// SetContactPriority aborts this commit and the retry applies
			// the new cap.
			current, err := tx.HGet(ctx, metaKey(contactID), "priority").Result()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("inventory: %w: %s", common.ErrNotRegistered, contactID)
			}
			if err != nil {
				return err
			}
			cap := common.BudgetCaps[common.Priority(current)][tier]
			count, err := tx.ZCard(ctx, idx).Result()
			if err != nil {
				return err
			}
			if count >= int64(cap) {
				return common.NewBudgetExceededError(contactID, string(tier), int(count), cap)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, ik, map[string]any{
					"contact_id": contactID,
					"key_id":     keyID,
					"tier":       string(tier),
					"public_key": publicKey,
					"signature":  signature,
					"fetched_at": fetchedAt,
				})
				pipe.ZAdd(ctx, idx, redis.Z{Score: float64(fetchedAt), Member: keyID})
				return nil
			})
			return err
		}, idx, metaKey(contactID))

		if txErr == nil {
			return nil
		}
		var budgetErr *common.BudgetExceededError
		if errors.As(txErr, &budgetErr) {
			return budgetErr
		}
		if errors.Is(txErr, common.ErrNotRegistered) {
			return txErr
		}
		if errors.Is(txErr, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, txErr)
	}
	return fmt.Errorf("inventory: %w: store_key contact=%s tier=%s", common.ErrConcurrencyError, contactID, tier)
}

func (s *RedisStore) popFromTier(ctx context.Context, contactID string, tier common.Tier) (Entry, bool, error) {
	idx := idxKey(contactID, tier)
	popped, err := s.rdb.ZPopMin(ctx, idx, 1).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	if len(popped) == 0 {
		return Entry{}, false, nil
	}
	keyID, _ := popped[0].Member.(string)
	ik := invKey(contactID, keyID)
	data, err := s.rdb.HGetAll(ctx, ik).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	if len(data) == 0 {
		return Entry{}, false, nil
	}
	_ = s.rdb.Del(ctx, ik).Err()

	fetchedAt, _ := strconv.ParseInt(data["fetched_at"], 10, 64)
	return Entry{
		ContactID: data["contact_id"],
		KeyID:     keyID,
		Tier:      common.Tier(data["tier"]),
		PublicKey: []byte(data["public_key"]),
		Signature: []byte(data["signature"]),
		FetchedAt: fetchedAt,
	}, true, nil
}

func (s *RedisStore) SelectCoin(ctx context.Context, contactID string, desiredTier common.Tier) (Entry, bool, error) {
	if !desiredTier.Valid() {
		return Entry{}, false, fmt.Errorf("inventory: %w: %s", common.ErrInvalidTier, desiredTier)
	}
	if _, err := s.getPriority(ctx, contactID); err != nil {
		return Entry{}, false, err
	}

	tiersToTry := append([]common.Tier{desiredTier}, desiredTier.FallbackOrder()...)
	for _, tier := range tiersToTry {
		entry, ok, err := s.popFromTier(ctx, contactID, tier)
		if err != nil {
			return Entry{}, false, err
		}
		if ok {
			_ = s.rdb.HSet(ctx, metaKey(contactID), "last_msg_at", strconv.FormatInt(time.Now().UnixMilli(), 10)).Err()
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *RedisStore) ConsumeKey(ctx context.Context, contactID, keyID string) (bool, error) {
	ik := invKey(contactID, keyID)
	tier, err := s.rdb.HGet(ctx, ik, "tier").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, ik)
	pipe.ZRem(ctx, idxKey(contactID, common.Tier(tier)), keyID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	return true, nil
}

func (s *RedisStore) GetInventory(ctx context.Context, contactID string) (Summary, error) {
	meta, ok, err := s.GetContactMeta(ctx, contactID)
	if err != nil {
		return Summary{}, err
	}
	if !ok {
		return Summary{}, fmt.Errorf("inventory: %w: %s", common.ErrNotRegistered, contactID)
	}
	pipe := s.rdb.Pipeline()
	goldCmd := pipe.ZCard(ctx, idxKey(contactID, common.TierGold))
	silverCmd := pipe.ZCard(ctx, idxKey(contactID, common.TierSilver))
	bronzeCmd := pipe.ZCard(ctx, idxKey(contactID, common.TierBronze))
	if _, err := pipe.Exec(ctx); err != nil {
		return Summary{}, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	return Summary{
		ContactID:   contactID,
		GoldCount:   goldCmd.Val(),
		SilverCount: silverCmd.Val(),
		BronzeCount: bronzeCmd.Val(),
		Priority:    meta.Priority,
	}, nil
}

// GetAllInventory scans inv:v1:meta:* with SCAN and assembles every
// registered contact's Summary.
func (s *RedisStore) GetAllInventory(ctx context.Context) (map[string]Summary, error) {
	ids, err := s.ListContactIDs(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]Summary, len(ids))
	for _, contactID := range ids {
		summary, err := s.GetInventory(ctx, contactID)
		if err != nil {
			continue
		}
		result[contactID] = summary
	}
	return result, nil
}

// ListContactIDs scans inv:v1:meta:* with SCAN, never KEYS, so a large
// inventory never blocks other clients while it's enumerated.
func (s *RedisStore) ListContactIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.rdb.Scan(ctx, 0, metaPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		mk := iter.Val()
		parts := strings.SplitN(mk, ":", 4)
		if len(parts) < 4 {
			continue
		}
		ids = append(ids, parts[3])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	return ids, nil
}

// PurgeContactKeys deletes every cached entry for contactID across all
// three tier indexes.
func (s *RedisStore) PurgeContactKeys(ctx context.Context, contactID string) (int, error) {
	deleted := 0
	for _, tier := range common.Tiers {
		idx := idxKey(contactID, tier)
		keyIDs, err := s.rdb.ZRange(ctx, idx, 0, -1).Result()
		if err != nil {
			return deleted, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
		}
		if len(keyIDs) == 0 {
			continue
		}
		pipe := s.rdb.Pipeline()
		for _, keyID := range keyIDs {
			pipe.Del(ctx, invKey(contactID, keyID))
		}
		pipe.Del(ctx, idx)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
		}
		deleted += len(keyIDs)
	}
	return deleted, nil
}

func (s *RedisStore) HasKeysFor(ctx context.Context, contactID string) (bool, error) {
	for _, tier := range common.Tiers {
		n, err := s.rdb.ZCard(ctx, idxKey(contactID, tier)).Result()
		if err != nil {
			return false, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *RedisStore) GetAvailableTiers(ctx context.Context, contactID string) ([]common.Tier, error) {
	pipe := s.rdb.Pipeline()
	cmds := make(map[common.Tier]*redis.IntCmd, len(common.Tiers))
	for _, tier := range common.Tiers {
		cmds[tier] = pipe.ZCard(ctx, idxKey(contactID, tier))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("inventory: %w: %v", common.ErrStoreUnavailable, err)
	}
	var available []common.Tier
	for _, tier := range common.Tiers {
		if cmds[tier].Val() > 0 {
			available = append(available, tier)
		}
	}
	return available, nil
}
