// Package agentsvc wires one device's Vault, Inventory, and Bridge to the
// shared Directory and runs its background maintenance loop.
package agentsvc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/bridge"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/config"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/contextpolicy"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/directory"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/gc"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/inventory"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/logging"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/redisx"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/reporter"
	"github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/vault"
)

// App owns one device's Redis-backed stores, its Directory connection, and
// the background maintenance goroutine that purges expired Vault entries
// and garbage-collects inactive Inventory contacts.
type App struct {
	config *config.AgentConfig
	logger logging.Logger

	vaultRedis *redis.Client
	invRedis   *redis.Client
	directDB   directory.Repository

	// OwnerID identifies this device to the Directory. Taken from
	// config.AgentConfig.OwnerID, or generated once if that was blank.
	OwnerID string

	Vault     vault.Store
	Inventory inventory.Store
	Bridge    *bridge.Bridge
	GC        *gc.Collector
	Reporter  *reporter.Reporter

	// ContextFn supplies the device's current battery/connectivity state
	// for gating opportunistic maintenance. Defaults to always-ideal.
	ContextFn func() contextpolicy.DeviceContext
}

// NewApp connects to Redis (Vault + Inventory logical DBs) and to the
// Directory's Postgres pool, and assembles the domain services.
func NewApp(ctx context.Context, cfg *config.AgentConfig, directDB directory.Repository) (*App, error) {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	vaultRedis, err := redisx.NewClient(ctx, redisx.ClientOptions{Addr: cfg.RedisAddr, DB: cfg.RedisVaultDB, SocketTimeout: cfg.RedisSocketTimeout})
	if err != nil {
		return nil, fmt.Errorf("agentsvc: vault redis: %w", err)
	}
	invRedis, err := redisx.NewClient(ctx, redisx.ClientOptions{Addr: cfg.RedisAddr, DB: cfg.RedisInventoryDB, SocketTimeout: cfg.RedisSocketTimeout})
	if err != nil {
		_ = vaultRedis.Close()
		return nil, fmt.Errorf("agentsvc: inventory redis: %w", err)
	}

	vaultStore := vault.NewRedisStore(vaultRedis, cfg.VaultKeyTTL, cfg.VaultBurnGrace)
	invStore := inventory.NewRedisStore(invRedis, cfg.InventoryOptimisticLockRetries)

	ownerID := cfg.OwnerID
	if ownerID == "" {
		ownerID = uuid.NewString()
		logger.Info(ctx, "generated device owner id", "owner_id", ownerID)
	}

	return &App{
		config:     cfg,
		logger:     logger,
		vaultRedis: vaultRedis,
		invRedis:   invRedis,
		directDB:   directDB,
		OwnerID:    ownerID,
		Vault:      vaultStore,
		Inventory:  invStore,
		Bridge:     bridge.New(directDB, invStore, vaultStore),
		GC:         gc.New(invStore),
		Reporter:   reporter.New(vaultStore, invStore, cfg.InventoryMaxStorageBytes),
		ContextFn:  func() contextpolicy.DeviceContext { return contextpolicy.DeviceContext{BatteryPct: 100, HasWiFi: true} },
	}, nil
}

// SyncContact tops up the local cache for contactID from targetOwnerID's
// Directory pool, identifying this device as the requester by OwnerID.
func (app *App) SyncContact(ctx context.Context, contactID, targetOwnerID string) (map[common.Tier]int, error) {
	return app.Bridge.SyncInventory(ctx, contactID, targetOwnerID, app.OwnerID)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runMaintenance purges expired Vault entries and runs inventory garbage
// collection, but only when the device's current context is ideal — see
// contextpolicy.IsIdealState — so a constrained device never pays this
// cost on a fixed timer regardless of its state.
func (app *App) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(app.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !contextpolicy.IsIdealState(app.ContextFn()) {
				continue
			}

			purged, err := app.Vault.PurgeExpired(ctx, int64(app.config.VaultPurgeMaxAge.Seconds()))
			if err != nil {
				app.logger.Error(ctx, "vault purge failed", "error", err)
			} else if purged > 0 {
				app.logger.Info(ctx, "purged expired vault entries", "count", purged)
			}

			result, err := app.GC.GarbageCollect(ctx, int(app.config.InventoryGCInactiveAfter.Hours()/24))
			if err != nil {
				app.logger.Error(ctx, "inventory gc failed", "error", err)
			} else if result.ContactsCleaned > 0 {
				app.logger.Info(ctx, "garbage collected inactive contacts", "contacts", result.ContactsCleaned, "keys_deleted", result.KeysDeleted)
			}
		}
	}
}

// Run blocks until an OS signal or ctx cancellation stops the maintenance
// loop, then releases the Redis connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting agent service")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runMaintenance(ctx)
	}()
	wg.Wait()

	if err := redisx.CloseAll(app.vaultRedis, app.invRedis); err != nil {
		app.logger.Error(ctx, "error closing redis clients", "error", err)
	}
}
