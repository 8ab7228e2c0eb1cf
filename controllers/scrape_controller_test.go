package controllers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobboard/controllers"
	"github.com/cppla/jobboard/services"
)

type extractFunc func(ctx context.Context, rawURL, text string) (services.ParseResult, error)

func (f extractFunc) Extract(ctx context.Context, rawURL, text string) (services.ParseResult, error) {
	return f(ctx, rawURL, text)
}

func scrapeRouter(e controllers.Extractor) *gin.Engine {
	r := gin.New()
	r.POST("/scrape", controllers.NewScrapeController(e).Scrape)
	return r
}

func TestScrape(t *testing.T) {
	e := extractFunc(func(_ context.Context, rawURL, text string) (services.ParseResult, error) {
		switch {
		case rawURL == "https://jobs.example.com/1":
			return services.ParseResult{Listing: &services.JobListing{Title: "Go dev", Tags: []string{}}}, nil
		case text == "gibberish":
			return services.ParseResult{Err: services.ErrUnparsableListing, Raw: "no json"}, nil
		default:
			return services.ParseResult{}, &services.InputError{Msg: "URL or text is required"}
		}
	})
	r := scrapeRouter(e)

	w := perform(r, http.MethodPost, "/scrape", `{"url":"https://jobs.example.com/1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	listing := decode(t, w)["listing"].(map[string]any)
	assert.Equal(t, "Go dev", listing["title"])

	w = perform(r, http.MethodPost, "/scrape", `{"text":"gibberish"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no json", decode(t, w)["raw"])

	w = perform(r, http.MethodPost, "/scrape", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "URL or text is required", decode(t, w)["error"])
}

func TestScrape_NotConfigured(t *testing.T) {
	w := perform(scrapeRouter(nil), http.MethodPost, "/scrape", `{"text":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Inference API not configured", decode(t, w)["error"])
}
