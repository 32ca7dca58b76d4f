// Package delivery holds the inbound adapters. Each binary collects its deliveries in an fx
// group and serves them side by side.
package delivery

import "context"

// Delivery is a long-running inbound surface such as an HTTP server or a queue consumer.
type Delivery interface {
	Serve(ctx context.Context) error
}
