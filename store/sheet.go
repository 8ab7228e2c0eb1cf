package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SheetStore talks to a spreadsheet-as-database REST API. Each sheet tab is a
// table: GET {base}/{table} lists {"<table>": [rows]}, POST {base}/{table}
// creates from {"<singular>": fields}, PUT {base}/{table}/{id} overwrites the
// given fields. The API has no filters, no atomic increments and no unique keys.
type SheetStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewSheetStore creates a client for the API rooted at baseURL.
func NewSheetStore(baseURL, token string, client *http.Client) *SheetStore {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SheetStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

// ListAll fetches the whole sheet.
func (s *SheetStore) ListAll(ctx context.Context, table string) ([]Row, error) {
	var payload map[string][]Row
	if err := s.do(ctx, http.MethodGet, s.baseURL+"/"+table, nil, &payload); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return payload[table], nil
}

// FindOne lists the sheet and scans it; the API has no point lookup by business key.
func (s *SheetStore) FindOne(ctx context.Context, table string, pred func(Row) bool) (Row, bool, error) {
	return findOne(ctx, s, table, pred)
}

// UpdateFields sends a partial PUT for row id.
func (s *SheetStore) UpdateFields(ctx context.Context, table string, id int64, fields Row) error {
	body := map[string]Row{singular(table): fields}
	url := s.baseURL + "/" + table + "/" + strconv.FormatInt(id, 10)
	if err := s.do(ctx, http.MethodPut, url, body, nil); err != nil {
		return fmt.Errorf("update %s/%d: %w", table, id, err)
	}
	return nil
}

// Create appends a row and returns it as echoed by the API.
func (s *SheetStore) Create(ctx context.Context, table string, fields Row) (Row, error) {
	key := singular(table)
	var payload map[string]Row
	if err := s.do(ctx, http.MethodPost, s.baseURL+"/"+table, map[string]Row{key: fields}, &payload); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	row, ok := payload[key]
	if !ok {
		return clone(fields), nil
	}
	return row, nil
}

func (s *SheetStore) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodPut {
		return ErrRowNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sheet api %s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(out)
}

// singular derives the body key the API expects for a table ("jobs" -> "job").
func singular(table string) string {
	if strings.HasSuffix(table, "ies") {
		return strings.TrimSuffix(table, "ies") + "y"
	}
	return strings.TrimSuffix(table, "s")
}
