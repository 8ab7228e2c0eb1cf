package store_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobboard/store"
)

func TestSheetStore_ListAllDecodesNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"jobs":[{"id":1,"totalViews":12},{"id":2,"totalViews":"3"}]}`)
	}))
	defer srv.Close()

	s := store.NewSheetStore(srv.URL+"/", "secret", srv.Client())
	rows, err := s.ListAll(context.Background(), "jobs")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	views, ok := store.Int64(rows[0], "totalViews")
	assert.True(t, ok)
	assert.Equal(t, int64(12), views)
	views, ok = store.Int64(rows[1], "totalViews")
	assert.True(t, ok)
	assert.Equal(t, int64(3), views)
}

func TestSheetStore_ListAllDecodesWholeDecimals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"jobs":[{"id":1.0,"totalViews":41.0}]}`)
	}))
	defer srv.Close()

	rows, err := store.NewSheetStore(srv.URL, "", srv.Client()).ListAll(context.Background(), "jobs")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id, ok := store.Int64(rows[0], store.IDField)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
	views, ok := store.Int64(rows[0], "totalViews")
	assert.True(t, ok)
	assert.Equal(t, int64(41), views)
}

func TestSheetStore_UpdateFieldsSendsPartialPut(t *testing.T) {
	var got map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/dailyStats/5", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	s := store.NewSheetStore(srv.URL, "", srv.Client())
	require.NoError(t, s.UpdateFields(context.Background(), "dailyStats", 5, store.Row{"views": 4}))

	require.Contains(t, got, "dailyStat")
	assert.Equal(t, map[string]any{"views": float64(4)}, got["dailyStat"])
}

func TestSheetStore_UpdateMissingRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := store.NewSheetStore(srv.URL, "", srv.Client())
	err := s.UpdateFields(context.Background(), "jobs", 9, store.Row{"paid": true})
	assert.ErrorIs(t, err, store.ErrRowNotFound)
}

func TestSheetStore_CreateReturnsEchoedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		row := body["jobAlert"]
		row["id"] = 31
		_ = json.NewEncoder(w).Encode(map[string]any{"jobAlert": row})
	}))
	defer srv.Close()

	s := store.NewSheetStore(srv.URL, "", srv.Client())
	row, err := s.Create(context.Background(), "jobAlerts", store.Row{"email": "a@example.com"})
	require.NoError(t, err)

	id, ok := store.Int64(row, store.IDField)
	assert.True(t, ok)
	assert.Equal(t, int64(31), id)
	assert.Equal(t, "a@example.com", store.String(row, "email"))
}

func TestSheetStore_ServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := store.NewSheetStore(srv.URL, "", srv.Client())
	_, err := s.ListAll(context.Background(), "jobs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestOpen_SelectsDriver(t *testing.T) {
	s, err := store.Open(store.Options{Driver: "memory"})
	require.NoError(t, err)
	_, atomic := s.(store.Incrementer)
	assert.True(t, atomic)

	_, err = store.Open(store.Options{Driver: "sheet"})
	assert.Error(t, err)
	_, err = store.Open(store.Options{Driver: "mysql"})
	assert.Error(t, err)
	_, err = store.Open(store.Options{Driver: "mongo"})
	assert.Error(t, err)
}
