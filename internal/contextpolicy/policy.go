// Package contextpolicy selects the coin tier a device should spend from,
// based on its current battery, connectivity, and signal state. Pure
// functions, no I/O.
package contextpolicy

import "github.com/CryptIndo-Labs/Amortized-Quantum-Messaging/internal/common"

// DeviceContext is a snapshot of device state at message-send time.
type DeviceContext struct {
	BatteryPct float64
	HasWiFi    bool
	SignalDBM  float64
}

// SelectTier returns the coin tier to spend from for the given device
// state:
//
//	battery < 5%                      -> BRONZE
//	no WiFi, signal < -100 dBm         -> BRONZE
//	WiFi, battery < 20%                -> BRONZE
//	no WiFi, signal >= -100 dBm        -> SILVER
//	WiFi, 20% <= battery < 50%         -> SILVER
//	WiFi, battery >= 50%               -> GOLD
func SelectTier(ctx DeviceContext) common.Tier {
	if ctx.BatteryPct < 5 {
		return common.TierBronze
	}

	if !ctx.HasWiFi {
		if ctx.SignalDBM < -100 {
			return common.TierBronze
		}
		return common.TierSilver
	}

	if ctx.BatteryPct < 20 {
		return common.TierBronze
	}
	if ctx.BatteryPct < 50 {
		return common.TierSilver
	}
	return common.TierGold
}

// IsIdealState reports whether conditions are good enough to run
// background maintenance (inventory sync, garbage collection) without
// being a drain on a constrained device.
func IsIdealState(ctx DeviceContext) bool {
	return ctx.BatteryPct > 20 && ctx.HasWiFi
}
