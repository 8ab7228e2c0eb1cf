package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobboard/services"
)

func TestParseListing(t *testing.T) {
	e := services.NewListingExtractor("http://inference.invalid", "")

	tests := []struct {
		name    string
		raw     string
		title   string
		company string
		tags    []string
		wantErr bool
	}{
		{
			name:    "plain json",
			raw:     `{"title":"Backend Engineer","company":"Acme","location":"Berlin","type":"Contract","tags":["go"," sql ",""]}`,
			title:   "Backend Engineer",
			company: "Acme",
			tags:    []string{"go", "sql"},
		},
		{
			name:    "json wrapped in prose",
			raw:     "Sure! Here is the listing:\n```json\n{\"title\": \"SRE\", \"company\": \"Initech\"}\n```\nLet me know.",
			title:   "SRE",
			company: "Initech",
			tags:    []string{},
		},
		{
			name:    "empty fields get defaults",
			raw:     `{"title":"  ","tags":null}`,
			title:   services.DefaultListingTitle,
			company: services.DefaultListingCompany,
			tags:    []string{},
		},
		{name: "no object", raw: "I could not find a job listing.", wantErr: true},
		{name: "broken object", raw: `here {"title": } there`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.ParseListing(tt.raw)
			assert.Equal(t, tt.raw, res.Raw)
			if tt.wantErr {
				assert.ErrorIs(t, res.Err, services.ErrUnparsableListing)
				assert.Nil(t, res.Listing)
				return
			}
			require.NoError(t, res.Err)
			require.NotNil(t, res.Listing)
			assert.Equal(t, tt.title, res.Listing.Title)
			assert.Equal(t, tt.company, res.Listing.Company)
			assert.Equal(t, tt.tags, res.Listing.Tags)
		})
	}
}

func TestParseListing_Sanitizes(t *testing.T) {
	e := services.NewListingExtractor("http://inference.invalid", "")
	res := e.ParseListing(`{"title":"<b>Go</b> dev","description":"<p>Build things</p><script>alert(1)</script>"}`)
	require.NoError(t, res.Err)
	assert.Equal(t, "Go dev", res.Listing.Title)
	assert.Equal(t, services.DefaultListingLocation, res.Listing.Location)
	assert.Equal(t, services.DefaultListingType, res.Listing.Type)
	assert.Contains(t, res.Listing.Description, "<p>Build things</p>")
	assert.NotContains(t, res.Listing.Description, "script")
}

func TestParseListing_LenientFields(t *testing.T) {
	e := services.NewListingExtractor("http://inference.invalid", "")

	res := e.ParseListing(`{"title":"Go dev","salary":120000,"tags":"go, rust ,","applyUrl":["x"],"company":{"name":"Acme"}}`)
	require.NoError(t, res.Err)
	assert.Equal(t, "Go dev", res.Listing.Title)
	assert.Equal(t, "120000", res.Listing.Salary)
	assert.Equal(t, []string{"go", "rust"}, res.Listing.Tags)
	assert.Empty(t, res.Listing.ApplyURL)
	assert.Equal(t, services.DefaultListingCompany, res.Listing.Company)

	res = e.ParseListing(`Here you go: {"title":7,"tags":["go",3,{"x":1}],"salary":"$100k"}`)
	require.NoError(t, res.Err)
	assert.Equal(t, "7", res.Listing.Title)
	assert.Equal(t, []string{"go", "3"}, res.Listing.Tags)
	assert.Equal(t, "$100k", res.Listing.Salary)

	res = e.ParseListing(`null`)
	assert.ErrorIs(t, res.Err, services.ErrUnparsableListing)
}

func TestNewListingExtractor_Unconfigured(t *testing.T) {
	assert.Nil(t, services.NewListingExtractor("", "token"))
}

func TestExtract_FetchesPageAndCallsModel(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Staff Engineer</h1>\n\n<p>Globex is hiring.</p></body></html>"))
	}))
	defer page.Close()

	var got struct {
		Inputs     string         `json:"inputs"`
		Parameters map[string]any `json:"parameters"`
	}
	var auth string
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[{"generated_text":"{\"title\":\"Staff Engineer\",\"company\":\"Globex\"}"}]`))
	}))
	defer model.Close()

	e := services.NewListingExtractor(model.URL, "hf_secret")
	res, err := e.Extract(context.Background(), page.URL, "")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "Staff Engineer", res.Listing.Title)
	assert.Equal(t, "Globex", res.Listing.Company)

	assert.Equal(t, "Bearer hf_secret", auth)
	assert.True(t, strings.HasSuffix(got.Inputs, "Staff Engineer Globex is hiring."))
	assert.NotContains(t, got.Inputs, "<h1>")
	assert.EqualValues(t, 1024, got.Parameters["max_new_tokens"])
	assert.Equal(t, false, got.Parameters["return_full_text"])
}

func TestExtract_SingleObjectAndUnparsable(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"generated_text":"no listing here"}`))
	}))
	defer model.Close()

	e := services.NewListingExtractor(model.URL, "")
	res, err := e.Extract(context.Background(), "", "Some pasted listing text")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, services.ErrUnparsableListing)
	assert.Equal(t, "no listing here", res.Raw)
}

func TestExtract_InputErrors(t *testing.T) {
	e := services.NewListingExtractor("http://inference.invalid", "")
	ctx := context.Background()

	_, err := e.Extract(ctx, "", "  ")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = e.Extract(ctx, "ftp://example.com/job", "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	assert.EqualError(t, err, "Invalid URL")

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	_, err = e.Extract(ctx, missing.URL, "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestExtract_ModelFailure(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer model.Close()

	_, err := services.NewListingExtractor(model.URL, "").Extract(context.Background(), "", "listing")
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrInvalidInput)
	assert.Contains(t, err.Error(), "status 503")
}

func TestExtract_OversizedModelResponse(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"generated_text":"` + strings.Repeat("a", 2<<20) + `"}]`))
	}))
	defer model.Close()

	_, err := services.NewListingExtractor(model.URL, "").Extract(context.Background(), "", "listing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode inference response")
}
