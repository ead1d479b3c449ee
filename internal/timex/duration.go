// Package timex provides a JSON-friendly time.Duration wrapper for
// configuration files, so that JSON config knobs can be written as
// human-readable strings ("30s", "720h") instead of raw nanoseconds.
package timex

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration with JSON marshalling that accepts either a
// duration string ("30s", "24h") or a bare integer number of nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v)
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("timex: invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("timex: unsupported duration type %T", raw)
	}
}

// MarshalJSON implements json.Marshaler, writing the duration in
// time.Duration.String() form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}
