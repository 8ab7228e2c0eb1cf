package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/metrics"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

// Tracker records view and click events. services.CounterService implements it.
type Tracker interface {
	TrackView(ctx context.Context, ev services.ViewEvent) error
	TrackClick(ctx context.Context, ev services.ClickEvent) error
}

// TrackingController serves the public view and click beacons.
type TrackingController struct {
	tracker Tracker
}

// NewTrackingController creates a TrackingController. A nil tracker means the store is not configured.
func NewTrackingController(tracker Tracker) *TrackingController {
	return &TrackingController{tracker: tracker}
}

// TrackView handles POST /track-view.
func (t *TrackingController) TrackView(ctx *gin.Context) {
	body, err := ctx.GetRawData()
	if err != nil {
		respondError(ctx, err)
		return
	}
	ev, err := services.ParseViewEvent(body)
	if err != nil {
		metrics.TrackEvent("view", metrics.ResultRejected)
		respondError(ctx, err)
		return
	}
	if t.tracker == nil {
		notConfigured(ctx, "Store")
		return
	}
	if err := t.tracker.TrackView(ctx.Request.Context(), ev); err != nil {
		metrics.TrackEvent("view", metrics.ResultError)
		respondError(ctx, err)
		return
	}
	metrics.TrackEvent("view", metrics.ResultOK)
	utils.Success(ctx, nil)
}

// TrackClick handles POST /track-click.
func (t *TrackingController) TrackClick(ctx *gin.Context) {
	body, err := ctx.GetRawData()
	if err != nil {
		respondError(ctx, err)
		return
	}
	ev, err := services.ParseClickEvent(body)
	if err != nil {
		metrics.TrackEvent("click", metrics.ResultRejected)
		respondError(ctx, err)
		return
	}
	if t.tracker == nil {
		notConfigured(ctx, "Store")
		return
	}
	if err := t.tracker.TrackClick(ctx.Request.Context(), ev); err != nil {
		metrics.TrackEvent("click", metrics.ResultError)
		respondError(ctx, err)
		return
	}
	metrics.TrackEvent("click", metrics.ResultOK)
	utils.Success(ctx, nil)
}
