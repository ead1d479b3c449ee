package config

import (
	"encoding/json"
	"os"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/flagx"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/timex"
)

type agentJSONConfig struct {
	OwnerID string `json:"owner_id"`

	RedisAddr          string         `json:"redis_addr"`
	RedisVaultDB       int            `json:"redis_vault_db"`
	RedisInventoryDB   int            `json:"redis_inventory_db"`
	RedisSocketTimeout timex.Duration `json:"redis_socket_timeout"`

	DirectoryDatabaseDSN string `json:"directory_database_dsn"`

	VaultKeyTTL        timex.Duration `json:"vault_key_ttl"`
	VaultBurnGrace     timex.Duration `json:"vault_burn_grace"`
	VaultPurgeMaxAge   timex.Duration `json:"vault_purge_max_age"`
	VaultPurgeInterval timex.Duration `json:"vault_purge_interval"`

	InventoryOptimisticLockRetries int            `json:"inventory_optimistic_lock_retries"`
	InventoryGCInactiveAfter       timex.Duration `json:"inventory_gc_inactive_after"`
	InventoryMaxStorageBytes       int64          `json:"inventory_max_storage_bytes"`

	MaintenanceInterval timex.Duration `json:"maintenance_interval"`
}

// parseAgentJSON loads configuration values from a JSON file (given via
// -c/-config) into cfg. Absent flag or file is a silent no-op.
func parseAgentJSON(cfg *AgentConfig) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var j agentJSONConfig
	if err := json.Unmarshal(raw, &j); err != nil {
		panic(err)
	}

	cfg.OwnerID = j.OwnerID

	cfg.RedisAddr = j.RedisAddr
	cfg.RedisVaultDB = j.RedisVaultDB
	cfg.RedisInventoryDB = j.RedisInventoryDB
	cfg.RedisSocketTimeout = j.RedisSocketTimeout.Duration

	cfg.DirectoryDatabaseDSN = j.DirectoryDatabaseDSN

	cfg.VaultKeyTTL = j.VaultKeyTTL.Duration
	cfg.VaultBurnGrace = j.VaultBurnGrace.Duration
	cfg.VaultPurgeMaxAge = j.VaultPurgeMaxAge.Duration
	cfg.VaultPurgeInterval = j.VaultPurgeInterval.Duration

	cfg.InventoryOptimisticLockRetries = j.InventoryOptimisticLockRetries
	cfg.InventoryGCInactiveAfter = j.InventoryGCInactiveAfter.Duration
	cfg.InventoryMaxStorageBytes = j.InventoryMaxStorageBytes

	cfg.MaintenanceInterval = j.MaintenanceInterval.Duration
}
