package config

import (
	"flag"
	"os"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/flagx"
)

// parseAgentFlags populates selected AgentConfig fields from command-line
// flags.
//
// Supported flags:
//
//	-redis string       Redis address (host:port)
//	-vault-db int        Redis logical DB for the Vault
//	-inv-db int          Redis logical DB for the Inventory
//	-directory-dsn string  PostgreSQL DSN used by the Bridge's Directory client
//	-owner-id string     this device's Directory owner/requester ID
func parseAgentFlags(cfg *AgentConfig) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-redis", "-vault-db", "-inv-db", "-directory-dsn", "-owner-id",
	})

	fs := flag.NewFlagSet("aqm-agent", flag.ContinueOnError)

	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address (host:port)")
	fs.IntVar(&cfg.RedisVaultDB, "vault-db", cfg.RedisVaultDB, "Redis logical DB for the Vault")
	fs.IntVar(&cfg.RedisInventoryDB, "inv-db", cfg.RedisInventoryDB, "Redis logical DB for the Inventory")
	fs.StringVar(&cfg.DirectoryDatabaseDSN, "directory-dsn", cfg.DirectoryDatabaseDSN, "PostgreSQL DSN for the Directory")
	fs.StringVar(&cfg.OwnerID, "owner-id", cfg.OwnerID, "this device's Directory owner/requester ID")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
