package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

// StatsReader returns the counters of a job. services.CounterService implements it.
type StatsReader interface {
	Stats(ctx context.Context, jobID int64) (*services.JobStats, error)
}

// StatsController exposes per-job view and click statistics.
type StatsController struct {
	stats StatsReader
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(stats StatsReader) *StatsController {
	return &StatsController{stats: stats}
}

// GetJobStats returns lifetime totals and the daily series of a job.
func (s *StatsController) GetJobStats(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.Error(ctx, http.StatusBadRequest, "Invalid job id")
		return
	}
	if s.stats == nil {
		notConfigured(ctx, "Store")
		return
	}
	st, err := s.stats.Stats(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"stats": st})
}
