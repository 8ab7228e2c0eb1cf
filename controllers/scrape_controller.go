package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

// Extractor turns a job page into a listing. services.ListingExtractor implements it.
type Extractor interface {
	Extract(ctx context.Context, rawURL, text string) (services.ParseResult, error)
}

// ScrapeController drafts job listings from external postings.
type ScrapeController struct {
	extractor Extractor
}

// NewScrapeController creates a ScrapeController. A nil extractor means inference is not configured.
func NewScrapeController(extractor Extractor) *ScrapeController {
	return &ScrapeController{extractor: extractor}
}

type scrapeRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Scrape extracts a listing. Unparsable model output answers 422 with the raw text.
func (s *ScrapeController) Scrape(ctx *gin.Context) {
	if s.extractor == nil {
		notConfigured(ctx, "Inference API")
		return
	}
	var req scrapeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := s.extractor.Extract(ctx.Request.Context(), req.URL, req.Text)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if res.Err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Could not parse the extracted listing",
			"raw":   res.Raw,
		})
		return
	}
	utils.Success(ctx, gin.H{"listing": res.Listing})
}
