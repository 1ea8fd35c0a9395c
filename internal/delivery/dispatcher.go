package delivery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"phishguard-backend/internal/models"
)

// Dispatcher routes artifacts to the transport registered for their channel.
// Bulk sends run on a fixed worker pool so a large recipient list cannot
// stampede the upstream gateway.
type Dispatcher struct {
	transports map[models.Channel]Transport
	workers    int
}

func NewDispatcher(workers int, transports ...Transport) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	byChannel := make(map[models.Channel]Transport, len(transports))
	for _, transport := range transports {
		byChannel[transport.Channel()] = transport
	}
	return &Dispatcher{transports: byChannel, workers: workers}
}

// SendSingle delivers the artifact to one recipient. Transport failures are
// returned inside the result, not as an error.
func (d *Dispatcher) SendSingle(ctx context.Context, recipient models.Recipient, artifact *models.ContentArtifact) models.DeliveryResult {
	result := models.DeliveryResult{
		Recipient: recipient,
		Channel:   artifact.Channel,
		SentAt:    time.Now().UTC(),
	}

	transport, ok := d.transports[artifact.Channel]
	if !ok {
		result.Error = fmt.Sprintf("%s: no transport for channel %q", ErrCategoryUnsupported, artifact.Channel)
		return result
	}

	if err := transport.Send(ctx, recipient, artifact); err != nil {
		result.Error = err.Error()
		return result
	}

	result.OK = true
	return result
}

// SendBulk delivers the artifact to every recipient with bounded concurrency.
// Every recipient gets exactly one result; one failure never aborts the
// batch, so Successful+Failed always equals len(recipients).
func (d *Dispatcher) SendBulk(ctx context.Context, recipients []models.Recipient, artifact *models.ContentArtifact) *models.BulkDeliveryResult {
	results := make([]models.DeliveryResult, len(recipients))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.SendSingle(ctx, recipients[i], artifact)
			}
		}()
	}

	for i := range recipients {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	bulk := &models.BulkDeliveryResult{Results: results}
	for _, result := range results {
		if result.OK {
			bulk.Successful++
		} else {
			bulk.Failed++
		}
	}

	log.Printf("📦 Bulk dispatch finished: %d ok, %d failed of %d", bulk.Successful, bulk.Failed, len(recipients))
	return bulk
}
