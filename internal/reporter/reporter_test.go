package reporter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/inventory"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/vault"
)

type fakeVault struct {
	stats vault.Stats
}

func (f *fakeVault) StoreKey(ctx context.Context, keyID string, tier common.Tier, blob, iv, tag []byte, coinVersion string) error {
	return nil
}
func (f *fakeVault) FetchKey(ctx context.Context, keyID string) (vault.Entry, bool, error) {
	return vault.Entry{}, false, nil
}
func (f *fakeVault) BurnKey(ctx context.Context, keyID string) error { return nil }
func (f *fakeVault) CountActive(ctx context.Context, tier common.Tier) (int64, error) {
	return f.stats.ActiveCount(tier), nil
}
func (f *fakeVault) CountActiveAll(ctx context.Context) (map[common.Tier]int64, error) {
	return nil, nil
}
func (f *fakeVault) Exists(ctx context.Context, keyID string) (bool, error) { return false, nil }
func (f *fakeVault) GetAllActiveIDs(ctx context.Context, tier common.Tier) ([]string, error) {
	return nil, nil
}
func (f *fakeVault) PurgeExpired(ctx context.Context, maxAge int64) (int, error) { return 0, nil }
func (f *fakeVault) GetStats(ctx context.Context) (vault.Stats, error)           { return f.stats, nil }

type fakeInventory struct {
	summaries map[string]inventory.Summary
}

func (f *fakeInventory) RegisterContact(ctx context.Context, contactID string, priority common.Priority, displayName string) (bool, error) {
	return false, nil
}
func (f *fakeInventory) SetContactPriority(ctx context.Context, contactID string, priority common.Priority) error {
	return nil
}
func (f *fakeInventory) GetContactMeta(ctx context.Context, contactID string) (inventory.ContactMeta, bool, error) {
	return inventory.ContactMeta{}, false, nil
}
func (f *fakeInventory) StoreKey(ctx context.Context, contactID, keyID string, tier common.Tier, publicKey, signature []byte) error {
	return nil
}
func (f *fakeInventory) SelectCoin(ctx context.Context, contactID string, desiredTier common.Tier) (inventory.Entry, bool, error) {
	return inventory.Entry{}, false, nil
}
func (f *fakeInventory) ConsumeKey(ctx context.Context, contactID, keyID string) (bool, error) {
	return false, nil
}
func (f *fakeInventory) GetInventory(ctx context.Context, contactID string) (inventory.Summary, error) {
	return f.summaries[contactID], nil
}
func (f *fakeInventory) GetAllInventory(ctx context.Context) (map[string]inventory.Summary, error) {
	return f.summaries, nil
}
func (f *fakeInventory) HasKeysFor(ctx context.Context, contactID string) (bool, error) {
	return false, nil
}
func (f *fakeInventory) GetAvailableTiers(ctx context.Context, contactID string) ([]common.Tier, error) {
	return nil, nil
}
func (f *fakeInventory) ListContactIDs(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeInventory) PurgeContactKeys(ctx context.Context, contactID string) (int, error) {
	return 0, nil
}

func TestGetStorageUsage_SumsAcrossContacts(t *testing.T) {
	inv := &fakeInventory{summaries: map[string]inventory.Summary{
		"alice": {ContactID: "alice", GoldCount: 1, SilverCount: 2, BronzeCount: 3, Priority: common.PriorityBestie},
	}}
	r := New(&fakeVault{}, inv, 65536)

	report, err := r.GetStorageUsage(context.Background())
	require.NoError(t, err)

	want := int64(1*common.CoinSizeBytes[common.TierGold] + 2*common.CoinSizeBytes[common.TierSilver] + 3*common.CoinSizeBytes[common.TierBronze])
	require.Equal(t, want, report.TotalBytes)
	require.Equal(t, want, report.PerContact["alice"])
	require.InDelta(t, float64(want)/65536*100, report.UtilizationPct, 0.01)
}

func TestGetReplenishNeeds_SkipsStrangersAndFullContacts(t *testing.T) {
	inv := &fakeInventory{summaries: map[string]inventory.Summary{
		"needy":    {ContactID: "needy", GoldCount: 1, SilverCount: 0, BronzeCount: 0, Priority: common.PriorityBestie},
		"full":     {ContactID: "full", GoldCount: 5, SilverCount: 4, BronzeCount: 1, Priority: common.PriorityBestie},
		"stranger": {ContactID: "stranger", GoldCount: 0, SilverCount: 0, BronzeCount: 0, Priority: common.PriorityStranger},
	}}
	r := New(&fakeVault{}, inv, 65536)

	needs, err := r.GetReplenishNeeds(context.Background())
	require.NoError(t, err)

	require.Contains(t, needs, "needy")
	require.Equal(t, 4, needs["needy"][common.TierGold])
	require.Equal(t, 4, needs["needy"][common.TierSilver])
	require.Equal(t, 1, needs["needy"][common.TierBronze])

	require.NotContains(t, needs, "full", "a contact already at cap must not appear")
	require.NotContains(t, needs, "stranger", "STRANGER contacts must be skipped")
}

func TestFullDashboard_AggregatesEverything(t *testing.T) {
	inv := &fakeInventory{summaries: map[string]inventory.Summary{
		"alice": {ContactID: "alice", GoldCount: 1, Priority: common.PriorityBestie},
	}}
	v := &fakeVault{stats: vault.Stats{ActiveGold: 3, TotalBurned: 10}}
	r := New(v, inv, 65536)

	dash, err := r.FullDashboard(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, dash.Vault.ActiveGold)
	require.EqualValues(t, 10, dash.Vault.TotalBurned)
	require.Len(t, dash.Contacts, 1)
	require.Contains(t, dash.ReplenishNeeds, "alice")
}
