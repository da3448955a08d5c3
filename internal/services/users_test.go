package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_FansOutAndAssembles(t *testing.T) {
	var mu sync.Mutex
	paths := make(map[string]int)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path]++
		mu.Unlock()

		switch r.URL.Path {
		case "/api/profile/":
			json.NewEncoder(w).Encode(User{ID: "u-1", Email: "sam@crewflow.io", FirstName: "Sam"})
		case "/api/profile/permissions/":
			json.NewEncoder(w).Encode([]string{"payroll.process", "jobs.read"})
		case "/api/profile/preferences/":
			json.NewEncoder(w).Encode(map[string]interface{}{"theme": "dark"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc := NewUserService(newTestClient(t, server.URL))

	profile, err := svc.Profile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "u-1", profile.User.ID)
	assert.Contains(t, profile.Permissions, "payroll.process")
	assert.Equal(t, "dark", profile.Preferences["theme"])

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, paths, 3, "all three legs should be fetched")
}

func TestProfile_OneFailingLegFailsTheCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/profile/permissions/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer server.Close()

	svc := NewUserService(newTestClient(t, server.URL))

	_, err := svc.Profile(context.Background())
	require.Error(t, err)
}

func TestSession_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Session{UserID: "u-1", TenantID: "t-1"})
	}))
	defer server.Close()

	svc := NewUserService(newTestClient(t, server.URL))

	session, err := svc.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-1", session.UserID)
	assert.Equal(t, "t-1", session.TenantID)
}
