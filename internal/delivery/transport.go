// Package delivery fans generated content out to recipients over
// channel-specific transports. Transports report categorized errors; the
// dispatcher records them per recipient and never aborts a batch.
package delivery

import (
	"context"

	"phishguard-backend/internal/models"
)

// Transport sends one artifact to one recipient over a single channel.
type Transport interface {
	Channel() models.Channel
	Send(ctx context.Context, recipient models.Recipient, artifact *models.ContentArtifact) error
}

// Transport error categories recorded in DeliveryResult.Error. Raw provider
// detail stays in the logs.
const (
	ErrCategoryInvalidAddress = "invalid_address"
	ErrCategoryThrottled      = "throttled"
	ErrCategoryTransportDown  = "transport_down"
	ErrCategoryUnsupported    = "unsupported_channel"
)
