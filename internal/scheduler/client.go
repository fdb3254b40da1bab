package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/config"
	platformredis "recruitment_backend/platform/redis"

	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// CloseTrial queues the closure sweep for a protocol. A sweep already
// pending for the same protocol counts as queued.
func (c *Client) CloseTrial(ctx context.Context, trialID string) (bool, error) {
	trialID = strings.TrimSpace(trialID)
	if trialID == "" {
		return false, apperr.Validation("trial id is required")
	}

	task, err := NewTrialClosureTask(TrialClosurePayload{TrialID: trialID})
	if err != nil {
		return false, err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(5))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return true, nil
	}
	if err != nil {
		return false, apperr.Unavailable("failed to queue trial closure", err)
	}
	return true, nil
}

// EnqueueSiteGeocode queues one site geocode backfill run.
func (c *Client) EnqueueSiteGeocode(ctx context.Context, limit int) error {
	task, err := NewSiteGeocodeTask(SiteGeocodePayload{Limit: limit})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	if cfg.GetRedisURL() == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	opt, err := platformredis.Options(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
