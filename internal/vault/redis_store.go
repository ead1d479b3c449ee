package vault

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
)

// statsKey is the single hash holding the Vault's aggregate counters.
const statsKey = "vault:v1:stats"

func entryKey(keyID string) string {
	return "vault:v1:key:" + keyID
}

func activeField(tier common.Tier) string {
	switch tier {
	case common.TierGold:
		return "active_gold"
	case common.TierSilver:
		return "active_silver"
	case common.TierBronze:
		return "active_bronze"
	default:
		return ""
	}
}

// lockRetries bounds the WATCH/MULTI/EXEC retry loop used by StoreKey and
// BurnKey to guard their check-then-act sequences against concurrent
// callers racing on the same entry key.
const lockRetries = 3

// RedisStore is the Store implementation backing a single device's Vault.
// Each mutation runs inside a TxPipelined block so the entry write and its
// stats delta commit together.
type RedisStore struct {
	rdb       *redis.Client
	keyTTL    time.Duration
	burnGrace time.Duration
}

// NewRedisStore constructs a RedisStore. keyTTL bounds how long an ACTIVE
// entry survives before Redis reaps it; burnGrace is the shorter TTL
// applied once an entry is BURNED, keeping tombstones around briefly for
// replay detection without holding them forever.
func NewRedisStore(rdb *redis.Client, keyTTL, burnGrace time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, keyTTL: keyTTL, burnGrace: burnGrace}
}

func (s *RedisStore) StoreKey(ctx context.Context, keyID string, tier common.Tier, encryptedBlob, iv, authTag []byte, coinVersion string) error {
	if !tier.Valid() {
		return fmt.Errorf("vault: %w: %s", common.ErrInvalidTier, tier)
	}

	field := activeField(tier)
	ek := entryKey(keyID)
	now := time.Now().UTC()

	for attempt := 0; attempt < lockRetries; attempt++ {
		txErr := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			exists, err := tx.Exists(ctx, ek).Result()
			if err != nil {
				return err
			}
			if exists == 1 {
				return common.ErrAlreadyExists
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, ek, map[string]any{
					"key_id":         keyID,
					"tier":           string(tier),
					"encrypted_blob": encryptedBlob,
					"iv":             iv,
					"auth_tag":       authTag,
					"status":         string(common.VaultStatusActive),
					"created_at":     now.Format(time.RFC3339Nano),
					"coin_version":   coinVersion,
				})
				pipe.Expire(ctx, ek, s.keyTTL)
				pipe.HIncrBy(ctx, statsKey, field, 1)
				return nil
			})
			return err
		}, ek)

		if txErr == nil {
			return nil
		}
		if errors.Is(txErr, common.ErrAlreadyExists) {
			return fmt.Errorf("vault: %w: %s", common.ErrAlreadyExists, keyID)
		}
		if errors.Is(txErr, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, txErr)
	}
	return fmt.Errorf("vault: %w: store_key %s", common.ErrConcurrencyError, keyID)
}

func (s *RedisStore) FetchKey(ctx context.Context, keyID string) (Entry, bool, error) {
	res, err := s.rdb.HGetAll(ctx, entryKey(keyID)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, err)
	}
	if len(res) == 0 {
		return Entry{}, false, nil
	}
	if common.VaultStatus(res["status"]) != common.VaultStatusActive {
		return Entry{}, false, nil
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, res["created_at"])
	entry := Entry{
		KeyID:         res["key_id"],
		Tier:          common.Tier(res["tier"]),
		EncryptedBlob: []byte(res["encrypted_blob"]),
		IV:            []byte(res["iv"]),
		AuthTag:       []byte(res["auth_tag"]),
		Status:        common.VaultStatus(res["status"]),
		CreatedAt:     createdAt,
		CoinVersion:   res["coin_version"],
	}
	return entry, true, nil
}

func (s *RedisStore) BurnKey(ctx context.Context, keyID string) error {
	ek := entryKey(keyID)

	for attempt := 0; attempt < lockRetries; attempt++ {
		txErr := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			vals, err := tx.HMGet(ctx, ek, "status", "tier").Result()
			if err != nil {
				return err
			}
			status, _ := vals[0].(string)
			if status == "" {
				return common.ErrNotFound
			}
			if common.VaultStatus(status) == common.VaultStatusBurned {
				return common.ErrAlreadyBurned
			}
			tierStr, _ := vals[1].(string)
			field := activeField(common.Tier(tierStr))

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, ek, "status", string(common.VaultStatusBurned))
				pipe.Expire(ctx, ek, s.burnGrace)
				if field != "" {
					pipe.HIncrBy(ctx, statsKey, field, -1)
				}
				pipe.HIncrBy(ctx, statsKey, "total_burned", 1)
				return nil
			})
			return err
		}, ek)

		if txErr == nil {
			return nil
		}
		if errors.Is(txErr, common.ErrNotFound) {
			return fmt.Errorf("vault: %w: %s", common.ErrNotFound, keyID)
		}
		if errors.Is(txErr, common.ErrAlreadyBurned) {
			return fmt.Errorf("vault: %w: %s", common.ErrAlreadyBurned, keyID)
		}
		if errors.Is(txErr, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, txErr)
	}
	return fmt.Errorf("vault: %w: burn_key %s", common.ErrConcurrencyError, keyID)
}

func (s *RedisStore) CountActive(ctx context.Context, tier common.Tier) (int64, error) {
	field := activeField(tier)
	if field == "" {
		return 0, fmt.Errorf("vault: %w: %s", common.ErrInvalidTier, tier)
	}
	v, err := s.rdb.HGet(ctx, statsKey, field).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, err)
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n, nil
}

func (s *RedisStore) CountActiveAll(ctx context.Context) (map[common.Tier]int64, error) {
	stats, err := s.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	return map[common.Tier]int64{
		common.TierGold:   stats.ActiveGold,
		common.TierSilver: stats.ActiveSilver,
		common.TierBronze: stats.ActiveBronze,
	}, nil
}

func (s *RedisStore) Exists(ctx context.Context, keyID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, entryKey(keyID)).Result()
	if err != nil {
		return false, fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// GetAllActiveIDs scans every vault:v1:key:* entry with SCAN, never KEYS,
// so a large vault never blocks other clients while it's enumerated.
func (s *RedisStore) GetAllActiveIDs(ctx context.Context, tier common.Tier) ([]string, error) {
	var ids []string
	iter := s.rdb.Scan(ctx, 0, "vault:v1:key:*", 200).Iterator()
	for iter.Next(ctx) {
		ek := iter.Val()
		vals, err := s.rdb.HMGet(ctx, ek, "key_id", "tier", "status").Result()
		if err != nil {
			continue
		}
		status, _ := vals[2].(string)
		if status != string(common.VaultStatusActive) {
			continue
		}
		if tier != "" {
			entryTier, _ := vals[1].(string)
			if entryTier != string(tier) {
				continue
			}
		}
		if keyID, ok := vals[0].(string); ok {
			ids = append(ids, keyID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, err)
	}
	return ids, nil
}

// PurgeExpired is the safety net of spec.md §4.1: it walks every ACTIVE
// entry and deletes any older than maxAge seconds, counting it under
// total_expired, in case its TTL was lost (e.g. a Redis restart with
// persistence disabled).
func (s *RedisStore) PurgeExpired(ctx context.Context, maxAge int64) (int, error) {
	cutoff := time.Now().Add(-time.Duration(maxAge) * time.Second)
	purged := 0

	iter := s.rdb.Scan(ctx, 0, "vault:v1:key:*", 200).Iterator()
	for iter.Next(ctx) {
		ek := iter.Val()
		vals, err := s.rdb.HMGet(ctx, ek, "status", "created_at", "tier").Result()
		if err != nil {
			continue
		}
		status, _ := vals[0].(string)
		if status != string(common.VaultStatusActive) {
			continue
		}
		createdStr, _ := vals[1].(string)
		createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
		if err != nil || createdAt.After(cutoff) {
			continue
		}
		tierStr, _ := vals[2].(string)
		field := activeField(common.Tier(tierStr))

		_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, ek)
			if field != "" {
				pipe.HIncrBy(ctx, statsKey, field, -1)
			}
			pipe.HIncrBy(ctx, statsKey, "total_expired", 1)
			return nil
		})
		if err != nil {
			continue
		}
		purged++
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, err)
	}
	return purged, nil
}

func (s *RedisStore) GetStats(ctx context.Context) (Stats, error) {
	res, err := s.rdb.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("vault: %w: %v", common.ErrStoreUnavailable, err)
	}
	parse := func(k string) int64 {
		n, _ := strconv.ParseInt(res[k], 10, 64)
		return n
	}
	return Stats{
		ActiveGold:   parse("active_gold"),
		ActiveSilver: parse("active_silver"),
		ActiveBronze: parse("active_bronze"),
		TotalBurned:  parse("total_burned"),
		TotalExpired: parse("total_expired"),
	}, nil
}
