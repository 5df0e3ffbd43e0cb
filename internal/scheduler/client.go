// Package scheduler runs the asynchronous side of the pipeline on an asynq
// task queue. Scoring requests triggered by ingestion and workflow
// evaluations triggered by scoring go through here instead of chaining HTTP
// calls between services; rapid duplicate triggers for the same contact
// collapse onto one pending task.
package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"selestial_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueScoreContact queues a scoring pass for one contact. The task id is
// keyed by contact, so a burst of events produces one pending pass.
func (c *Client) EnqueueScoreContact(ctx context.Context, orgID, contactID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewScoreContactTask(ScoreContactPayload{
		ContactID:      contactID.String(),
		OrganizationID: orgID.String(),
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(fmt.Sprintf("score:%s", contactID)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// A pass for this contact is already pending.
		return nil
	}
	return err
}

// NotifyScoreChanged queues a workflow evaluation for a contact whose score
// or health moved. Deduplicated by (contact, trigger).
func (c *Client) NotifyScoreChanged(ctx context.Context, orgID, contactID uuid.UUID) error {
	return c.enqueueEvaluation(ctx, orgID, contactID, "score_changed")
}

func (c *Client) enqueueEvaluation(ctx context.Context, orgID, contactID uuid.UUID, trigger string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewEvaluateWorkflowsTask(EvaluateWorkflowsPayload{
		ContactID:      contactID.String(),
		OrganizationID: orgID.String(),
		Trigger:        trigger,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(fmt.Sprintf("evaluate:%s:%s", contactID, trigger)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueScoringSweep queues a system-wide sweep of all live contacts. A
// fixed task id collapses overlapping requests onto one pending sweep.
func (c *Client) EnqueueScoringSweep(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, NewScoringSweepTask(),
		asynq.Queue(c.queue),
		asynq.TaskID("sweep"),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
