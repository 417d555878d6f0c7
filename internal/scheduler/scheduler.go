package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/alert"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/scraper"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/store"
)

// Scheduler owns the bot's periodic work: the scrape cycle on a ticker, and
// cron entries for the hourly digest, the daily digest and the two sweeps.
// None of these runs is cancellable mid-flight; a crash mid-cycle is safe
// because the next cycle re-derives everything from the oracle and the cache.
type Scheduler struct {
	repo      store.Repo
	log       *zap.Logger
	checker   scraper.Checker
	matcher   *alert.Matcher
	digest    *alert.Digest
	interval  time.Duration
	dailyHour int
	loc       *time.Location
	cron      *cron.Cron
}

func New(
	repo store.Repo,
	log *zap.Logger,
	checker scraper.Checker,
	matcher *alert.Matcher,
	digest *alert.Digest,
	interval time.Duration,
	dailyHour int,
	loc *time.Location,
) *Scheduler {
	return &Scheduler{
		repo:      repo,
		log:       log,
		checker:   checker,
		matcher:   matcher,
		digest:    digest,
		interval:  interval,
		dailyHour: dailyHour,
		loc:       loc,
	}
}

// Run starts the scrape loop until ctx is canceled. The first cycle runs
// immediately rather than waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.scrapeTick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scrape loop stopping")
			return
		case <-ticker.C:
			s.scrapeTick(ctx)
		}
	}
}

// StartCron installs and starts the digest and sweep entries. Times are
// interpreted in the bot timezone.
func (s *Scheduler) StartCron() error {
	c := cron.New(cron.WithLocation(s.loc))

	jobs := []struct {
		spec string
		name string
		fn   func(ctx context.Context, now time.Time)
	}{
		{"0 * * * *", "hourly digest", func(ctx context.Context, now time.Time) {
			// Instant-cadence users are included to flush alerts that quiet
			// hours deferred. Daily users whose quiet window covers the daily
			// slot are picked up here too, or they would never be flushed.
			s.digest.Flush(ctx, now, domain.CadenceInstant, domain.CadenceHourly)
			s.digest.FlushStranded(ctx, now, s.dailyHour)
		}},
		{fmt.Sprintf("0 %d * * *", s.dailyHour), "daily digest", func(ctx context.Context, now time.Time) {
			s.digest.Flush(ctx, now, domain.CadenceDaily)
		}},
		{"30 0 * * *", "expiry sweep", s.expireTick},
		{"*/30 * * * *", "pause-resume sweep", s.resumeTick},
	}

	for _, j := range jobs {
		j := j
		_, err := c.AddFunc(j.spec, func() {
			j.fn(context.Background(), time.Now().UTC())
		})
		if err != nil {
			return fmt.Errorf("add cron job %q: %w", j.name, err)
		}
	}

	c.Start()
	s.cron = c
	s.log.Info("cron scheduler started", zap.Int("dailyDigestHour", s.dailyHour))
	return nil
}

// StopCron stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) StopCron() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// scrapeTick performs one scrape cycle: every pincode with an eligible
// subscriber is checked and the readings go through the matcher. An oracle
// failure skips that pincode for this run and never touches the cache.
func (s *Scheduler) scrapeTick(ctx context.Context) {
	now := time.Now().UTC()

	pincodes, err := s.repo.ActivePincodes(ctx)
	if err != nil {
		s.log.Error("active pincode lookup failed", zap.Error(err))
		return
	}
	if len(pincodes) == 0 {
		s.log.Debug("no active subscribers, skipping cycle")
		return
	}

	for _, pincode := range pincodes {
		readings, err := s.checker.Check(ctx, pincode)
		if err != nil {
			s.log.Warn("availability check failed",
				zap.Error(err), zap.String("pincode", pincode))
			continue
		}
		s.matcher.Process(ctx, now, readings)
	}
}

func (s *Scheduler) expireTick(ctx context.Context, now time.Time) {
	n, err := s.repo.ExpireDue(ctx, now)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("subscriptions expired", zap.Int64("count", n))
	}
}

func (s *Scheduler) resumeTick(ctx context.Context, now time.Time) {
	n, err := s.repo.ResumeDue(ctx, now)
	if err != nil {
		s.log.Error("pause-resume sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("paused users resumed", zap.Int64("count", n))
	}
}
