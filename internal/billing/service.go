// internal/billing/service.go
package billing

import "context"

// Service defines the interface for the subscription reconciler.
type Service interface {
	// HandleWebhook verifies, parses and applies one provider delivery.
	// It must only be acknowledged to the provider (2xx) when it returns
	// nil; any error asks for redelivery.
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}
