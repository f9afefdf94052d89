package services

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"shopfront/internal/apperr"
	"shopfront/internal/config"
	"shopfront/internal/locks"
	applog "shopfront/internal/log"
	"shopfront/internal/metrics"
	"shopfront/internal/repos"
)

const (
	leaderLockKey = "publisher:leader"
	jitterWindow  = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// Publisher drains publish_jobs, retrying failed publishes with exponential backoff.
type Publisher struct {
	Jobs    *repos.PublishJobRepo
	Catalog *repos.CatalogRepo
	Mirror  *MirrorService
	Locks   locks.Locker
	Metrics *metrics.Shop

	cfg config.PublisherConfig
	now func() time.Time
}

func NewPublisher(jobs *repos.PublishJobRepo, catalog *repos.CatalogRepo, mirror *MirrorService,
	lk locks.Locker, m *metrics.Shop, cfg config.PublisherConfig) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	return &Publisher{Jobs: jobs, Catalog: catalog, Mirror: mirror, Locks: lk, Metrics: m, cfg: cfg, now: time.Now}
}

// Run polls until ctx is canceled. Only the holder of the leader lock drains jobs.
func (p *Publisher) Run(ctx context.Context) error {
	logger := applog.Background("publisher")
	logger.Info().Dur("poll_interval", p.cfg.PollInterval).Msg("publisher started")
	backoff := p.cfg.PollInterval
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("publisher stopped")
			return nil
		default:
		}

		processed, err := p.drain(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("publisher batch error")
			backoff = nextBackoff(backoff, p.cfg.PollInterval, p.cfg.MaxBackoff)
			if sleep(ctx, withJitter(backoff)) != nil {
				return nil
			}
			continue
		}
		backoff = p.cfg.PollInterval
		if processed {
			continue
		}
		if sleep(ctx, withJitter(p.cfg.PollInterval)) != nil {
			return nil
		}
	}
}

// drain handles one batch of due jobs and reports whether a full batch was seen.
func (p *Publisher) drain(ctx context.Context) (bool, error) {
	lease, ok, err := p.Locks.TryAcquire(ctx, leaderLockKey)
	if err != nil || !ok {
		return false, err
	}
	defer func() { _ = lease.Release(context.Background()) }()

	jobs, err := p.Jobs.Due(ctx, p.now(), p.cfg.BatchSize)
	if err != nil {
		return false, err
	}
	for i, job := range jobs {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// a batch can outlast the lock TTL; renew before every job
		if i > 0 {
			held, err := lease.Refresh(ctx)
			if err != nil {
				return false, err
			}
			if !held {
				logger := applog.Background("publisher")
				logger.Warn().Int("done", i).Int("batch", len(jobs)).Msg("leader lock lost mid-batch")
				return false, nil
			}
		}
		_ = p.attempt(ctx, job)
	}
	return len(jobs) == p.cfg.BatchSize, nil
}

// PublishNow attempts every open job of itemID right away, queueing one when none is open.
func (p *Publisher) PublishNow(ctx context.Context, itemID int64) error {
	jobs, err := p.Jobs.OpenForItem(ctx, itemID)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		id, err := p.Jobs.Enqueue(ctx, itemID, p.now())
		if err != nil {
			return err
		}
		jobs = []repos.PublishJob{{ID: id, ItemID: itemID}}
	}
	var last error
	for _, job := range jobs {
		if err := p.attempt(ctx, job); err != nil {
			last = err
		}
	}
	return last
}

func (p *Publisher) attempt(ctx context.Context, job repos.PublishJob) error {
	logger := applog.Background("publish")
	lease, ok, err := p.Locks.TryAcquire(ctx, "publish:"+strconv.FormatInt(job.ItemID, 10))
	if err != nil {
		return err
	}
	if !ok {
		// another worker is on it
		return nil
	}
	defer func() { _ = lease.Release(context.Background()) }()

	item, err := p.Catalog.Get(ctx, job.ItemID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			p.Metrics.IncPublish("dead")
			return p.Jobs.MarkDead(ctx, job.ID, err)
		}
		return err
	}

	mirror, err := p.Mirror.Publish(ctx, item)
	if err == nil {
		p.Metrics.IncPublish("published")
		logger.Info().Int64("item_id", item.ID).Str("price_id", mirror.PriceID).Msg("item published")
		return p.Jobs.MarkDone(ctx, job.ID)
	}

	attempts := job.Attempts + 1
	if attempts >= p.cfg.MaxAttempts || apperr.Is(err, apperr.CodeValidation) {
		p.Metrics.IncPublish("dead")
		logger.Error().Err(err).Int64("item_id", item.ID).Int("attempts", attempts).Msg("publish abandoned")
		if markErr := p.Jobs.MarkDead(ctx, job.ID, err); markErr != nil {
			return markErr
		}
		return err
	}
	next := p.now().Add(retryDelay(attempts, p.cfg.MaxBackoff))
	p.Metrics.IncPublish("retry")
	logger.Warn().Err(err).Int64("item_id", item.ID).Int("attempts", attempts).Time("next_attempt_at", next).Msg("publish failed")
	if markErr := p.Jobs.MarkFailed(ctx, job.ID, err, next); markErr != nil {
		return markErr
	}
	return err
}

// retryDelay is 2^attempts seconds, capped at max.
func retryDelay(attempts int, max time.Duration) time.Duration {
	if attempts > 20 {
		return max
	}
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > max {
		return max
	}
	return d
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
