package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cppla/jobboard/utils"
)

const maxLocationLen = 255

// ViewEvent is a validated view of a job posting.
type ViewEvent struct {
	EntityID int64
	Location *string
}

// LocationOrDefault returns the supplied location or the unknown sentinel.
func (e ViewEvent) LocationOrDefault(fallback string) string {
	if e.Location == nil {
		return fallback
	}
	return *e.Location
}

// ClickEvent is a validated click on a job posting's apply link.
type ClickEvent struct {
	EntityID int64
}

type trackRequest struct {
	JobID    json.RawMessage `json:"jobId"`
	Location *string         `json:"location"`
}

// ParseViewEvent validates a track-view body.
func ParseViewEvent(body []byte) (ViewEvent, error) {
	req, err := decodeTrackRequest(body)
	if err != nil {
		return ViewEvent{}, err
	}
	id, err := resolveJobID(req.JobID)
	if err != nil {
		return ViewEvent{}, err
	}
	ev := ViewEvent{EntityID: id}
	if req.Location != nil {
		loc := strings.TrimSpace(utils.StripTags(*req.Location))
		if r := []rune(loc); len(r) > maxLocationLen {
			loc = string(r[:maxLocationLen])
		}
		if loc != "" {
			ev.Location = &loc
		}
	}
	return ev, nil
}

// ParseClickEvent validates a track-click body.
func ParseClickEvent(body []byte) (ClickEvent, error) {
	req, err := decodeTrackRequest(body)
	if err != nil {
		return ClickEvent{}, err
	}
	id, err := resolveJobID(req.JobID)
	if err != nil {
		return ClickEvent{}, err
	}
	return ClickEvent{EntityID: id}, nil
}

func decodeTrackRequest(body []byte) (trackRequest, error) {
	var req trackRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, invalid("Job ID is required")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, invalid("Invalid JSON body")
	}
	return req, nil
}

// resolveJobID accepts a JSON integer or a numeric string.
func resolveJobID(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, invalid("Job ID is required")
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, invalid("Job ID must be an integer")
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return 0, invalid("Job ID is required")
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, invalid("Job ID must be an integer")
		}
		if f >= 1<<63 || f < -(1<<63) {
			return 0, invalid("Job ID is out of range")
		}
		id = int64(f)
	}
	if id <= 0 {
		return 0, invalid("Job ID must be a positive integer")
	}
	return id, nil
}
