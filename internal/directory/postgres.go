package directory

import (
	"context"
	"fmt"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/dbx"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UploadCoins runs one INSERT ... ON CONFLICT DO NOTHING per coin inside a
// caller-visible loop, counting the rows that actually landed. Wrap the
// call in dbx.WithTx for all-or-nothing batch semantics.
func (r *PostgresRepository) UploadCoins(ctx context.Context, ownerID string, coins []Upload) (int, error) {
	if len(coins) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO directory_coins (owner_id, key_id, tier, public_key_blob, signature_blob)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, key_id) DO NOTHING
	`

	inserted := 0
	for _, coin := range coins {
		if !coin.Tier.Valid() {
			return inserted, fmt.Errorf("directory: %w: %s", common.ErrInvalidTier, coin.Tier)
		}
		res, err := r.db.ExecContext(ctx, query, ownerID, coin.KeyID, string(coin.Tier), coin.PublicKeyBlob, coin.SignatureBlob)
		if err != nil {
			return inserted, fmt.Errorf("directory: upload_coins failed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("directory: rows affected error: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// FetchCoins is the fork-immunity primitive of spec.md §4.3: SELECT ... FOR
// UPDATE SKIP LOCKED picks the oldest unclaimed rows without blocking on
// rows a concurrent fetch already holds, and the outer UPDATE stamps the
// claim in the same statement so no window exists between "selected" and
// "claimed." Grounded on coin_inventory.py's fetch_coins CTE.
func (r *PostgresRepository) FetchCoins(ctx context.Context, targetOwnerID, requesterID string, tier string, count int) ([]Record, error) {
	if !common.Tier(tier).Valid() {
		return nil, fmt.Errorf("directory: %w: %s", common.ErrInvalidTier, tier)
	}

	const query = `
		WITH claimed AS (
			SELECT record_id, key_id, public_key_blob, signature_blob
			FROM directory_coins
			WHERE owner_id = $1 AND tier = $2 AND claimed_by IS NULL
			ORDER BY uploaded_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE directory_coins dc
		SET claimed_by = $4, claimed_at = NOW()
		FROM claimed
		WHERE dc.record_id = claimed.record_id
		RETURNING claimed.key_id, claimed.public_key_blob, claimed.signature_blob
	`

	rows, err := r.db.QueryContext(ctx, query, targetOwnerID, tier, count, requesterID)
	if err != nil {
		return nil, fmt.Errorf("directory: fetch_coins failed: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		rec.Tier = common.Tier(tier)
		if err := rows.Scan(&rec.KeyID, &rec.PublicKeyBlob, &rec.SignatureBlob); err != nil {
			return nil, fmt.Errorf("directory: fetch_coins scan failed: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: fetch_coins failed: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) InventoryCount(ctx context.Context, ownerID string) (InventoryCount, error) {
	const query = `
		SELECT tier, COUNT(*) AS cnt
		FROM directory_coins
		WHERE owner_id = $1 AND claimed_by IS NULL
		GROUP BY tier
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return InventoryCount{}, fmt.Errorf("directory: get_inventory_count failed: %w", err)
	}
	defer rows.Close()

	var counts InventoryCount
	for rows.Next() {
		var tier string
		var cnt int64
		if err := rows.Scan(&tier, &cnt); err != nil {
			return InventoryCount{}, fmt.Errorf("directory: get_inventory_count scan failed: %w", err)
		}
		switch common.Tier(tier) {
		case common.TierGold:
			counts.Gold = cnt
		case common.TierSilver:
			counts.Silver = cnt
		case common.TierBronze:
			counts.Bronze = cnt
		}
	}
	if err := rows.Err(); err != nil {
		return InventoryCount{}, fmt.Errorf("directory: get_inventory_count failed: %w", err)
	}
	return counts, nil
}

// PurgeStale is the Directory-side counterpart of Vault.PurgeExpired: a
// safety net against coins a device minted, uploaded, and then vanished
// before anyone ever claimed.
func (r *PostgresRepository) PurgeStale(ctx context.Context, maxAgeDays int) (int64, error) {
	const query = `
		DELETE FROM directory_coins
		WHERE uploaded_at < NOW() - ($1 || ' days')::interval
		  AND claimed_by IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, maxAgeDays)
	if err != nil {
		return 0, fmt.Errorf("directory: purge_stale failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("directory: purge_stale rows affected error: %w", err)
	}
	return n, nil
}

// HardDeleteClaimed removes rows past the grace window after being
// claimed: fetch already delivered the payload, so the row is pure
// housekeeping weight from here on.
func (r *PostgresRepository) HardDeleteClaimed(ctx context.Context, graceHours int) (int64, error) {
	const query = `
		DELETE FROM directory_coins
		WHERE claimed_by IS NOT NULL
		  AND claimed_at < NOW() - ($1 || ' hours')::interval
	`
	res, err := r.db.ExecContext(ctx, query, graceHours)
	if err != nil {
		return 0, fmt.Errorf("directory: hard_delete_claimed failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("directory: hard_delete_claimed rows affected error: %w", err)
	}
	return n, nil
}
