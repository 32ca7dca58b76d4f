// Package lifecycle holds shared timing for fx start/stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds start-up pings and graceful shutdown of servers and clients.
const DefaultTimeout = 15 * time.Second
