// Package worker drains the campaign queue. Each job generates one content
// artifact and fans it out to the campaign's recipients; jobs retry with
// exponential backoff and are guarded by a redis lock so only one worker
// processes a given job.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"phishguard-backend/internal/delivery"
	"phishguard-backend/internal/models"
	"phishguard-backend/internal/provider"
	"phishguard-backend/internal/repository"
)

const campaignQueue = "queue:campaign-dispatch"

type Pool struct {
	redis        *redis.Client
	provider     provider.ContentProvider
	dispatcher   *delivery.Dispatcher
	jobRepo      *repository.JobRepo
	deliveryRepo *repository.DeliveryRepo
	workerCount  int
	stopChan     chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	contentProvider provider.ContentProvider,
	dispatcher *delivery.Dispatcher,
	jobRepo *repository.JobRepo,
	deliveryRepo *repository.DeliveryRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:        redisClient,
		provider:     contentProvider,
		dispatcher:   dispatcher,
		jobRepo:      jobRepo,
		deliveryRepo: deliveryRepo,
		workerCount:  workerCount,
		stopChan:     make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d campaign worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, campaignQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		// Parse job
		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)

		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")
		p.publishProgress(ctx, &job, "processing", 0, 0)

		var processErr error
		switch job.Type {
		case "campaign-dispatch":
			processErr = p.processCampaign(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.jobRepo.UpdateStatus(ctx, job.ID, "completed")
			log.Printf("Job %s completed successfully", job.ID)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// processCampaign generates one artifact and bulk-dispatches it. Individual
// recipient failures live in the delivery log; only generation or persistence
// failures fail the job.
func (p *Pool) processCampaign(ctx context.Context, job *models.Job) error {
	var config models.CampaignConfig
	if err := json.Unmarshal(job.ConfigJSON, &config); err != nil {
		return fmt.Errorf("failed to parse campaign config: %w", err)
	}

	artifact, err := p.provider.Generate(ctx, provider.GenerateRequest{
		Kind:    config.Channel,
		Urgency: config.Urgency,
	})
	if err != nil {
		return fmt.Errorf("campaign content generation failed: %w", err)
	}

	bulk := p.dispatcher.SendBulk(ctx, config.Recipients, artifact)

	if err := p.deliveryRepo.RecordBatch(ctx, job.ID, bulk.Results); err != nil {
		return fmt.Errorf("failed to record delivery results: %w", err)
	}

	p.publishProgress(ctx, job, "completed", bulk.Successful, bulk.Failed)
	return nil
}

// publishProgress pushes a campaign.update event onto the job's session
// topic so campaign dashboards can watch progress over the websocket hub.
func (p *Pool) publishProgress(ctx context.Context, job *models.Job, status string, successful, failed int) {
	event := models.SessionEvent{
		Type:      models.EventCampaignUpdate,
		SessionID: job.ID,
		Payload: models.CampaignEvent{
			JobID:      job.ID,
			Status:     status,
			Successful: successful,
			Failed:     failed,
		},
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	channel := "session_updates:" + job.ID.String()
	if err := p.redis.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("Failed to publish campaign update for job %s: %v", job.ID, err)
	}
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries {
		// Re-queue with backoff
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), campaignQueue, string(jobBytes))
		})
		return
	}

	// Max retries reached
	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.publishProgress(ctx, job, "failed", 0, 0)
}
