package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobService_ListUsesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/jobs/", r.URL.Path)
		json.NewEncoder(w).Encode([]Job{{ID: "job-1", Title: "Repipe basement"}})
	}))
	defer server.Close()

	svc := NewJobService(newTestClient(t, server.URL))

	for i := 0; i < 2; i++ {
		jobs, err := svc.List(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "job-1", jobs[0].ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestJobService_CreateEvictsListCache(t *testing.T) {
	var listCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&listCalls, 1)
			json.NewEncoder(w).Encode([]Job{})
			return
		}
		json.NewEncoder(w).Encode(Job{ID: "job-2", Title: "Install heat pump"})
	}))
	defer server.Close()

	svc := NewJobService(newTestClient(t, server.URL))

	_, err := svc.List(context.Background(), nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), JobInput{
		Title:      "Install heat pump",
		CustomerID: "33333333-3333-3333-3333-333333333333",
	})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&listCalls))
}

func TestJobService_Complete(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(Job{ID: "job-1", Status: "completed"})
	}))
	defer server.Close()

	svc := NewJobService(newTestClient(t, server.URL))
	job, err := svc.Complete(context.Background(), "job-1")
	require.NoError(t, err)

	assert.Equal(t, "/api/jobs/job-1/complete/", gotPath)
	assert.Equal(t, "completed", job.Status)
}

func TestMaterialService_UseForJob(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(Material{ID: "mat-1", Quantity: 3})
	}))
	defer server.Close()

	svc := NewMaterialService(newTestClient(t, server.URL))
	m, err := svc.UseForJob(context.Background(), "mat-1", "job-1", 3)
	require.NoError(t, err)

	assert.Equal(t, "/api/materials/mat-1/use/", gotPath)
	assert.Equal(t, "job-1", gotPayload["job_id"])
	assert.Equal(t, 3.0, gotPayload["quantity"])
	assert.Equal(t, 3.0, m.Quantity)
}
