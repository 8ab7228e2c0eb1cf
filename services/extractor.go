package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/jobboard/utils"
)

const (
	maxListingText       = 8000
	maxListingPage       = 2 << 20
	maxInferenceResponse = 1 << 20
	fetchTimeout         = 10 * time.Second
	inferenceTimeout     = 60 * time.Second
)

// Listing defaults applied when the model leaves a field out.
const (
	DefaultListingTitle    = "Untitled Position"
	DefaultListingCompany  = "Unknown Company"
	DefaultListingLocation = "Remote"
	DefaultListingType     = "Full-time"
)

const extractionPrompt = `Extract the job listing below as JSON with the keys
title, company, location, type, description, salary, applyUrl and tags (array of strings).
Respond with the JSON object only.

Listing:
`

// JobListing is a structured job posting.
type JobListing struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Salary      string   `json:"salary,omitempty"`
	ApplyURL    string   `json:"applyUrl,omitempty"`
	Tags        []string `json:"tags"`
}

// ParseResult holds a listing, or the error and the raw model output when parsing failed.
type ParseResult struct {
	Listing *JobListing
	Err     error
	Raw     string
}

// ErrUnparsableListing is set on ParseResult.Err when no JSON object could be read.
var ErrUnparsableListing = errors.New("model output is not a job listing")

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ListingExtractor turns a job page into a JobListing through a hosted text generation model.
type ListingExtractor struct {
	inferenceURL string
	token        string
	fetcher      *http.Client
	inference    *http.Client
}

// NewListingExtractor returns nil when no inference endpoint is configured.
func NewListingExtractor(inferenceURL, token string) *ListingExtractor {
	if inferenceURL == "" {
		return nil
	}
	return &ListingExtractor{
		inferenceURL: inferenceURL,
		token:        token,
		fetcher:      &http.Client{Timeout: fetchTimeout},
		inference:    &http.Client{Timeout: inferenceTimeout},
	}
}

// Extract fetches rawURL, or uses text when rawURL is empty, and asks the model for a listing.
func (e *ListingExtractor) Extract(ctx context.Context, rawURL, text string) (ParseResult, error) {
	var content string
	switch {
	case strings.TrimSpace(rawURL) != "":
		page, err := e.fetch(ctx, rawURL)
		if err != nil {
			return ParseResult{}, err
		}
		content = page
	case strings.TrimSpace(text) != "":
		content = text
	default:
		return ParseResult{}, invalid("URL or text is required")
	}
	content = e.plainText(content)
	if content == "" {
		return ParseResult{}, invalid("The page has no readable text")
	}

	out, err := e.generate(ctx, extractionPrompt+content)
	if err != nil {
		return ParseResult{}, err
	}
	return e.ParseListing(out), nil
}

func (e *ListingExtractor) fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid("Invalid URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "jobboard-scraper/1.0")
	resp, err := e.fetcher.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", invalid(fmt.Sprintf("Could not fetch the page (status %d)", resp.StatusCode))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxListingPage))
	if err != nil {
		return "", fmt.Errorf("read listing: %w", err)
	}
	return string(b), nil
}

// plainText strips markup, collapses whitespace and truncates.
func (e *ListingExtractor) plainText(s string) string {
	s = strings.Join(strings.Fields(utils.StripTags(s)), " ")
	if r := []rune(s); len(r) > maxListingText {
		s = string(r[:maxListingText])
	}
	return s
}

type inferenceRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters"`
}

type inferenceOutput struct {
	GeneratedText string `json:"generated_text"`
}

func (e *ListingExtractor) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs: prompt,
		Parameters: map[string]any{
			"max_new_tokens":   1024,
			"temperature":      0.1,
			"return_full_text": false,
		},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.inferenceURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := e.inference.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxInferenceResponse))
	if err != nil {
		return "", fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("inference request: status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	// hosted endpoints answer with either a list or a single object
	var list []inferenceOutput
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0].GeneratedText, nil
	}
	var one inferenceOutput
	if err := json.Unmarshal(raw, &one); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	return one.GeneratedText, nil
}

// ParseListing reads a listing out of model output: the whole text as JSON,
// then the outermost {...} inside it. Fields are converted one by one and a
// field of an unexpected type falls back to its default.
func (e *ListingExtractor) ParseListing(raw string) ParseResult {
	var obj map[string]any
	err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj)
	if err != nil {
		m := jsonObject.FindString(raw)
		if m == "" {
			return ParseResult{Err: ErrUnparsableListing, Raw: raw}
		}
		if err = json.Unmarshal([]byte(m), &obj); err != nil {
			return ParseResult{Err: fmt.Errorf("%w: %v", ErrUnparsableListing, err), Raw: raw}
		}
	}
	if obj == nil {
		return ParseResult{Err: ErrUnparsableListing, Raw: raw}
	}
	l := JobListing{
		Title:       textField(obj["title"]),
		Company:     textField(obj["company"]),
		Location:    textField(obj["location"]),
		Type:        textField(obj["type"]),
		Description: textField(obj["description"]),
		Salary:      textField(obj["salary"]),
		ApplyURL:    textField(obj["applyUrl"]),
		Tags:        tagsField(obj["tags"]),
	}
	e.normalize(&l)
	return ParseResult{Listing: &l, Raw: raw}
}

// textField renders strings and numbers; anything else reads as empty.
func textField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// tagsField accepts an array of scalars or a comma separated string.
func tagsField(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, textField(item))
		}
		return out
	case string:
		return strings.Split(t, ",")
	}
	return nil
}

func (e *ListingExtractor) normalize(l *JobListing) {
	l.Title = orDefault(utils.StripTags(l.Title), DefaultListingTitle)
	l.Company = orDefault(utils.StripTags(l.Company), DefaultListingCompany)
	l.Location = orDefault(utils.StripTags(l.Location), DefaultListingLocation)
	l.Type = orDefault(utils.StripTags(l.Type), DefaultListingType)
	l.Description = strings.TrimSpace(utils.Sanitize(l.Description))
	l.Salary = strings.TrimSpace(utils.StripTags(l.Salary))
	l.ApplyURL = strings.TrimSpace(l.ApplyURL)
	tags := make([]string, 0, len(l.Tags))
	for _, t := range l.Tags {
		if t = strings.TrimSpace(utils.StripTags(t)); t != "" {
			tags = append(tags, t)
		}
	}
	l.Tags = tags
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
