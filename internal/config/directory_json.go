package config

import (
	"encoding/json"
	"os"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/flagx"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/timex"
)

// directoryJSONConfig is the intermediate DTO used only for unmarshalling
// the JSON config file. timex.Duration lets operators write "720h" instead
// of raw nanoseconds; the values are copied into DirectoryConfig afterward.
type directoryJSONConfig struct {
	DatabaseDSN            string         `json:"database_dsn"`
	PoolMinSize            int            `json:"pool_min_size"`
	PoolMaxSize            int            `json:"pool_max_size"`
	PurgeStaleAfter        timex.Duration `json:"purge_stale_after"`
	HardDeleteClaimedAfter timex.Duration `json:"hard_delete_claimed_after"`
	MaintenanceInterval    timex.Duration `json:"maintenance_interval"`
}

// parseDirectoryJSON loads configuration values from a JSON file (given via
// -c/-config) into cfg. Absent flag or file is a silent no-op; the caller is
// expected to have already applied defaults.
func parseDirectoryJSON(cfg *DirectoryConfig) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var j directoryJSONConfig
	if err := json.Unmarshal(raw, &j); err != nil {
		panic(err)
	}

	cfg.DatabaseDSN = j.DatabaseDSN
	cfg.PoolMinSize = j.PoolMinSize
	cfg.PoolMaxSize = j.PoolMaxSize
	cfg.PurgeStaleAfter = j.PurgeStaleAfter.Duration
	cfg.HardDeleteClaimedAfter = j.HardDeleteClaimedAfter.Duration
	cfg.MaintenanceInterval = j.MaintenanceInterval.Duration
}
