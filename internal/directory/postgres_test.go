package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUploadCoins_CountsOnlyInsertedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	coins := []Upload{
		{KeyID: "k1", Tier: common.TierGold, PublicKeyBlob: []byte("pk1"), SignatureBlob: []byte("sig1")},
		{KeyID: "k2", Tier: common.TierGold, PublicKeyBlob: []byte("pk2"), SignatureBlob: []byte("sig2")},
	}

	mock.ExpectExec("INSERT INTO directory_coins").
		WithArgs("owner-1", "k1", "GOLD", []byte("pk1"), []byte("sig1")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO directory_coins").
		WithArgs("owner-1", "k2", "GOLD", []byte("pk2"), []byte("sig2")).
		WillReturnResult(sqlmock.NewResult(0, 0)) // duplicate, ON CONFLICT DO NOTHING

	n, err := repo.UploadCoins(context.Background(), "owner-1", coins)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadCoins_EmptyBatchIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	n, err := repo.UploadCoins(context.Background(), "owner-1", nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadCoins_RejectsInvalidTier(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewPostgresRepository(db)

	_, err := repo.UploadCoins(context.Background(), "owner-1", []Upload{
		{KeyID: "k1", Tier: common.Tier("PLATINUM")},
	})
	require.ErrorIs(t, err, common.ErrInvalidTier)
}

func TestFetchCoins_ReturnsClaimedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	rows := sqlmock.NewRows([]string{"key_id", "public_key_blob", "signature_blob"}).
		AddRow("k1", []byte("pk1"), []byte("sig1")).
		AddRow("k2", []byte("pk2"), []byte("sig2"))

	mock.ExpectQuery("WITH claimed AS").
		WithArgs("owner-1", "GOLD", 5, "requester-1").
		WillReturnRows(rows)

	recs, err := repo.FetchCoins(context.Background(), "owner-1", "requester-1", "GOLD", 5)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "k1", recs[0].KeyID)
	require.Equal(t, common.TierGold, recs[0].Tier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchCoins_RejectsInvalidTier(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewPostgresRepository(db)

	_, err := repo.FetchCoins(context.Background(), "owner-1", "requester-1", "PLATINUM", 1)
	require.ErrorIs(t, err, common.ErrInvalidTier)
}

func TestInventoryCount_AggregatesByTier(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	rows := sqlmock.NewRows([]string{"tier", "cnt"}).
		AddRow("GOLD", 3).
		AddRow("BRONZE", 7)

	mock.ExpectQuery("SELECT tier, COUNT").
		WithArgs("owner-1").
		WillReturnRows(rows)

	counts, err := repo.InventoryCount(context.Background(), "owner-1")
	require.NoError(t, err)
	require.EqualValues(t, 3, counts.Gold)
	require.EqualValues(t, 0, counts.Silver)
	require.EqualValues(t, 7, counts.Bronze)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeStale_ReturnsDeletedCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM directory_coins").
		WithArgs(30).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.PurgeStale(context.Background(), 30)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHardDeleteClaimed_ReturnsDeletedCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM directory_coins").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.HardDeleteClaimed(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newMockDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, RunMigrations(context.Background(), db))
}

func TestRunMigrations_PropagatesError(t *testing.T) {
	db, _ := newMockDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := RunMigrations(context.Background(), db)
	require.EqualError(t, err, "boom")
}
