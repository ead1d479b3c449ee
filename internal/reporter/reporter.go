// Package reporter aggregates read-only views over the Vault and
// Inventory for diagnostics and capacity planning. It performs no
// mutation.
package reporter

import (
	"context"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/inventory"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/vault"
)

// StorageReport summarizes local cache usage against a fixed byte budget.
type StorageReport struct {
	TotalBytes     int64
	PerContact     map[string]int64
	BudgetBytes    int64
	UtilizationPct float64
}

// ReplenishNeeds maps a contact to its per-tier deficit against its
// priority's budget cap. A contact with no deficit, or with STRANGER
// priority, is omitted entirely.
type ReplenishNeeds map[string]map[common.Tier]int

// Dashboard is the full read-only snapshot returned by FullDashboard.
type Dashboard struct {
	Vault          vault.Stats
	InventoryUsage StorageReport
	ReplenishNeeds ReplenishNeeds
	Contacts       []inventory.Summary
}

// Reporter reads from a Vault and an Inventory without mutating either.
type Reporter struct {
	vault       vault.Store
	inventory   inventory.Store
	budgetBytes int64
}

// New constructs a Reporter. budgetBytes bounds the utilization
// percentage reported by GetStorageUsage.
func New(v vault.Store, inv inventory.Store, budgetBytes int64) *Reporter {
	return &Reporter{vault: v, inventory: inv, budgetBytes: budgetBytes}
}

func contactBytes(summary inventory.Summary) int64 {
	return summary.GoldCount*int64(common.CoinSizeBytes[common.TierGold]) +
		summary.SilverCount*int64(common.CoinSizeBytes[common.TierSilver]) +
		summary.BronzeCount*int64(common.CoinSizeBytes[common.TierBronze])
}

// GetStorageUsage reports total bytes cached locally, broken down per
// contact, against the configured budget.
func (r *Reporter) GetStorageUsage(ctx context.Context) (StorageReport, error) {
	summaries, err := r.inventory.GetAllInventory(ctx)
	if err != nil {
		return StorageReport{}, err
	}

	report := StorageReport{PerContact: make(map[string]int64, len(summaries)), BudgetBytes: r.budgetBytes}
	for contactID, summary := range summaries {
		b := contactBytes(summary)
		report.PerContact[contactID] = b
		report.TotalBytes += b
	}
	if r.budgetBytes > 0 {
		report.UtilizationPct = float64(report.TotalBytes) / float64(r.budgetBytes) * 100
	}
	return report, nil
}

// GetVaultReport returns the Vault's current aggregate counters.
func (r *Reporter) GetVaultReport(ctx context.Context) (vault.Stats, error) {
	return r.vault.GetStats(ctx)
}

// GetReplenishNeeds reports, per non-STRANGER contact, how many keys of
// each tier would need to be fetched to reach that contact's budget cap.
func (r *Reporter) GetReplenishNeeds(ctx context.Context) (ReplenishNeeds, error) {
	summaries, err := r.inventory.GetAllInventory(ctx)
	if err != nil {
		return nil, err
	}

	needs := make(ReplenishNeeds)
	for contactID, summary := range summaries {
		if summary.Priority == common.PriorityStranger {
			continue
		}
		caps := common.BudgetCaps[summary.Priority]
		current := map[common.Tier]int64{
			common.TierGold:   summary.GoldCount,
			common.TierSilver: summary.SilverCount,
			common.TierBronze: summary.BronzeCount,
		}

		deficit := make(map[common.Tier]int, len(common.Tiers))
		anyDeficit := false
		for _, tier := range common.Tiers {
			d := caps[tier] - int(current[tier])
			if d < 0 {
				d = 0
			}
			deficit[tier] = d
			if d > 0 {
				anyDeficit = true
			}
		}
		if anyDeficit {
			needs[contactID] = deficit
		}
	}
	return needs, nil
}

// FullDashboard aggregates every read above into one snapshot.
func (r *Reporter) FullDashboard(ctx context.Context) (Dashboard, error) {
	vaultStats, err := r.GetVaultReport(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	usage, err := r.GetStorageUsage(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	needs, err := r.GetReplenishNeeds(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	summaries, err := r.inventory.GetAllInventory(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	contacts := make([]inventory.Summary, 0, len(summaries))
	for _, s := range summaries {
		contacts = append(contacts, s)
	}

	return Dashboard{
		Vault:          vaultStats,
		InventoryUsage: usage,
		ReplenishNeeds: needs,
		Contacts:       contacts,
	}, nil
}
