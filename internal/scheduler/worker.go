package scheduler

import (
	"context"
	"fmt"

	"recruitment_backend/platform/config"
	"recruitment_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// TrialCloser imposes Trial Closed on every lead of a protocol.
type TrialCloser interface {
	ImposeTrialClosed(ctx context.Context, trialID string) (int, error)
}

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	handlers  *Handlers
	log       *logger.Logger
}

// Handlers process the queued tasks. They are separate from the asynq
// server so they can run without Redis.
type Handlers struct {
	closer   TrialCloser
	backfill *Backfill
	log      *logger.Logger
}

func NewHandlers(closer TrialCloser, backfill *Backfill, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Discard()
	}
	return &Handlers{closer: closer, backfill: backfill, log: log}
}

func (h *Handlers) HandleTrialClosure(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTrialClosurePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.TrialID == "" {
		return fmt.Errorf("%w: empty trial id", asynq.SkipRetry)
	}

	closed, err := h.closer.ImposeTrialClosed(ctx, payload.TrialID)
	if err != nil {
		h.log.Error("trial closure sweep failed", "trialId", payload.TrialID, "closed", closed, "error", err)
		return err
	}
	h.log.Info("trial closed", "trialId", payload.TrialID, "leads", closed)
	return nil
}

func (h *Handlers) HandleSiteGeocode(ctx context.Context, task *asynq.Task) error {
	if h.backfill == nil {
		return nil
	}
	payload, err := ParseSiteGeocodePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	updated, err := h.backfill.RunBatch(ctx, payload.Limit)
	if err != nil {
		return err
	}
	if updated > 0 {
		h.log.Info("sites geocoded", "count", updated)
	}
	return nil
}

func NewWorker(cfg config.SchedulerConfig, handlers *Handlers, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	queue := queueName(cfg)
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTrialClosure, handlers.HandleTrialClosure)
	mux.HandleFunc(TaskSiteGeocode, handlers.HandleSiteGeocode)

	w := &Worker{server: server, mux: mux, handlers: handlers, log: log}

	if spec := cfg.GetSiteGeocodeCron(); spec != "" && handlers.backfill != nil {
		task, err := NewSiteGeocodeTask(SiteGeocodePayload{})
		if err != nil {
			return nil, err
		}
		w.scheduler = asynq.NewScheduler(opt, nil)
		if _, err := w.scheduler.Register(spec, task, asynq.Queue(queue)); err != nil {
			return nil, fmt.Errorf("register site geocode schedule: %w", err)
		}
	}

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.log.Error("periodic scheduler failed to start", "error", err)
		}
	}

	go func() {
		<-ctx.Done()
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
