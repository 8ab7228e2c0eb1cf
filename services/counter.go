package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/store"
)

// Cache stores serialized read models. utils.RedisCache implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, b []byte, ttl time.Duration)
}

// CounterOptions configures a CounterService.
type CounterOptions struct {
	JobsTable       string
	DailyStatsTable string
	// DisableAtomicIncrements keeps the read-then-write path even when the store can increment atomically.
	DisableAtomicIncrements bool
	Clock                   Clock
	Logger                  *zap.Logger
	Cache                   Cache
	StatsTTL                time.Duration
}

// CounterService reflects view and click events into the lifetime counters
// of a job and into its per-day aggregate.
//
// Against a store without atomic increments, both counters are updated by
// reading the current value and writing value+1. Two concurrent events on the
// same row may read the same value and one increment is lost. Likewise two
// first events of a day may both miss the daily row and create two rows for
// the same (job, date). Neither case is repaired.
type CounterService struct {
	store      store.Store
	inc        store.Incrementer
	jobs       string
	dailyStats string
	clock      Clock
	logger     *zap.Logger
	cache      Cache
	statsTTL   time.Duration
}

// NewCounterService creates a counter over s.
func NewCounterService(s store.Store, opts CounterOptions) *CounterService {
	c := &CounterService{
		store:      s,
		jobs:       opts.JobsTable,
		dailyStats: opts.DailyStatsTable,
		clock:      opts.Clock,
		logger:     opts.Logger,
		cache:      opts.Cache,
		statsTTL:   opts.StatsTTL,
	}
	if c.jobs == "" {
		c.jobs = "jobs"
	}
	if c.dailyStats == "" {
		c.dailyStats = "dailyStats"
	}
	if c.clock == nil {
		c.clock = RealClock{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.statsTTL <= 0 {
		c.statsTTL = time.Minute
	}
	if inc, ok := s.(store.Incrementer); ok && !opts.DisableAtomicIncrements {
		c.inc = inc
	}
	return c
}

// Atomic reports whether counters are incremented without read-then-write.
func (c *CounterService) Atomic() bool {
	return c.inc != nil
}

// TrackView counts a view: totalViews on the job, views on today's aggregate.
// A new aggregate records the viewer location.
func (c *CounterService) TrackView(ctx context.Context, ev ViewEvent) error {
	loc := ev.LocationOrDefault(models.UnknownLocation)
	return c.track(ctx, ev.EntityID, models.JobTotalViews, models.StatViews, store.Row{
		models.StatViews:          int64(1),
		models.StatClicks:         int64(0),
		models.StatViewerLocation: loc,
	})
}

// TrackClick counts a click: totalClicks on the job, clicks on today's aggregate.
func (c *CounterService) TrackClick(ctx context.Context, ev ClickEvent) error {
	return c.track(ctx, ev.EntityID, models.JobTotalClicks, models.StatClicks, store.Row{
		models.StatViews:  int64(0),
		models.StatClicks: int64(1),
	})
}

func (c *CounterService) track(ctx context.Context, jobID int64, totalField, dailyField string, initial store.Row) error {
	date := c.clock.Now().UTC().Format(models.DateLayout)

	job, found, err := c.store.FindOne(ctx, c.jobs, func(r store.Row) bool {
		id, ok := store.Int64(r, store.IDField)
		return ok && id == jobID
	})
	if err != nil {
		return fmt.Errorf("find job %d: %w", jobID, err)
	}
	if found {
		if err := c.increment(ctx, c.jobs, job, totalField); err != nil {
			return fmt.Errorf("update job %d %s: %w", jobID, totalField, err)
		}
	} else {
		// the posting may not have been synced to the sheet yet
		c.logger.Debug("job not found, skipping lifetime counter", zap.Int64("job_id", jobID), zap.String("field", totalField))
	}

	stat, found, err := c.store.FindOne(ctx, c.dailyStats, func(r store.Row) bool {
		return models.Matches(r, jobID, date)
	})
	if err != nil {
		return fmt.Errorf("find daily stat %d/%s: %w", jobID, date, err)
	}
	if found {
		if err := c.increment(ctx, c.dailyStats, stat, dailyField); err != nil {
			return fmt.Errorf("update daily stat %d/%s: %w", jobID, date, err)
		}
	} else {
		fields := store.Row{
			models.StatJobID: jobID,
			models.StatDate:  date,
		}
		for k, v := range initial {
			fields[k] = v
		}
		if _, err := c.store.Create(ctx, c.dailyStats, fields); err != nil {
			return fmt.Errorf("create daily stat %d/%s: %w", jobID, date, err)
		}
	}

	c.invalidate(ctx, jobID)
	return nil
}

// increment adds one to field of row, atomically when the store allows it.
func (c *CounterService) increment(ctx context.Context, table string, row store.Row, field string) error {
	id, ok := store.Int64(row, store.IDField)
	if !ok {
		return fmt.Errorf("row without id in %s", table)
	}
	if c.inc != nil {
		return c.inc.Increment(ctx, table, id, field, 1)
	}
	var current int64
	if v, present := row[field]; present && v != nil {
		n, ok := store.Int64(row, field)
		if !ok {
			return fmt.Errorf("%s of row %d in %s is not an integer: %v", field, id, table, v)
		}
		current = n
	}
	return c.store.UpdateFields(ctx, table, id, store.Row{field: current + 1})
}

// JobStats is the read model of a job's counters.
type JobStats struct {
	JobID       int64              `json:"jobId"`
	TotalViews  int64              `json:"totalViews"`
	TotalClicks int64              `json:"totalClicks"`
	Daily       []models.DailyStat `json:"daily"`
}

// Stats returns lifetime totals and the daily series of jobID, oldest day first.
// Duplicate aggregates of a day are reported as stored.
func (c *CounterService) Stats(ctx context.Context, jobID int64) (*JobStats, error) {
	key := statsCacheKey(jobID)
	if c.cache != nil {
		if b, ok := c.cache.Get(ctx, key); ok {
			var cached JobStats
			if err := json.Unmarshal(b, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	job, foundJob, err := c.store.FindOne(ctx, c.jobs, func(r store.Row) bool {
		id, ok := store.Int64(r, store.IDField)
		return ok && id == jobID
	})
	if err != nil {
		return nil, fmt.Errorf("find job %d: %w", jobID, err)
	}
	rows, err := c.store.ListAll(ctx, c.dailyStats)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}

	out := &JobStats{JobID: jobID, Daily: []models.DailyStat{}}
	for _, r := range rows {
		if id, ok := store.Int64(r, models.StatJobID); ok && id == jobID {
			out.Daily = append(out.Daily, models.DailyStatFromRow(r))
		}
	}
	if !foundJob && len(out.Daily) == 0 {
		return nil, ErrNotFound
	}
	if foundJob {
		j := models.JobFromRow(job)
		out.TotalViews, out.TotalClicks = j.TotalViews, j.TotalClicks
	}
	sort.SliceStable(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })

	if c.cache != nil {
		if b, err := json.Marshal(out); err == nil {
			c.cache.Set(ctx, key, b, c.statsTTL)
		}
	}
	return out, nil
}

func (c *CounterService) invalidate(ctx context.Context, jobID int64) {
	if inv, ok := c.cache.(interface{ Delete(context.Context, string) }); ok {
		inv.Delete(ctx, statsCacheKey(jobID))
	}
}

func statsCacheKey(jobID int64) string {
	return "cache:job:stats:" + strconv.FormatInt(jobID, 10)
}
