package models

import "time"

// Recipient is one delivery target. Address is an email address or phone
// number depending on the channel.
type Recipient struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// DeliveryResult records the outcome of a single send. Error is a transport
// error category, never raw provider detail.
type DeliveryResult struct {
	Recipient Recipient `json:"recipient"`
	Channel   Channel   `json:"channel"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// BulkDeliveryResult aggregates a batch send. Successful+Failed always equals
// the number of requested recipients.
type BulkDeliveryResult struct {
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Results    []DeliveryResult `json:"per_recipient_results"`
}
