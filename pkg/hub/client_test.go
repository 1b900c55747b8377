package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sca-tools/bdreport/pkg/types"
)

// newHubServer spins up a fake hub that authenticates "apitok" and serves
// the handlers under mux. Every non-authenticate request must carry the
// bearer token the server issued.
func newHubServer(t *testing.T, mux *http.ServeMux) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var authCalls atomic.Int32
	root := http.NewServeMux()
	root.HandleFunc("POST /api/tokens/authenticate", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		if r.Header.Get("Authorization") != "token apitok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"bearerToken": "btok", "expiresInMilliseconds": 7200000}`) //nolint:errcheck
	})
	root.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer btok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
	ts := httptest.NewServer(root)
	t.Cleanup(ts.Close)
	return ts, &authCalls
}

func newTestClient(ts *httptest.Server) *Client {
	cfg := &Config{BaseURL: ts.URL, APIToken: "apitok", Timeout: 10 * time.Second}
	return New(cfg, nil, &types.MockLogger{})
}

func TestCreateReport(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/versions/v-1/reports", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Location", "https://hub/api/reports/r-9")
		w.WriteHeader(http.StatusCreated)
	})
	ts, authCalls := newHubServer(t, mux)

	client := newTestClient(ts)
	location, err := client.CreateReport(context.Background(), "v-1", []string{"SECURITY", "FILES"}, "CSV")
	require.NoError(t, err)

	assert.Equal(t, "https://hub/api/reports/r-9", location)
	assert.Equal(t, "v-1", body["versionId"])
	assert.Equal(t, "VERSION", body["reportType"])
	assert.Equal(t, "CSV", body["reportFormat"])
	assert.Equal(t, []any{"SECURITY", "FILES"}, body["categories"])
	assert.Equal(t, int32(1), authCalls.Load(), "one token exchange for the run")
}

func TestCreateReportNonCreatedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/versions/v-1/reports", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	_, err := client.CreateReport(context.Background(), "v-1", []string{"SECURITY"}, "CSV")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "create report", statusErr.Op)
}

func TestCreateReportMissingLocation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/versions/v-1/reports", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	_, err := client.CreateReport(context.Background(), "v-1", []string{"SECURITY"}, "CSV")
	require.Error(t, err)
	assert.ErrorContains(t, err, "Location")
}

func TestDownloadReport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reports/r-9/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/zip", r.Header.Get("Accept"))
		w.Write([]byte("zip-bytes")) //nolint:errcheck
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	data, err := client.DownloadReport(context.Background(), "r-9")
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), data)
}

func TestDownloadReportNotReady(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reports/r-9/download", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	_, err := client.DownloadReport(context.Background(), "r-9")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusPreconditionFailed, statusErr.StatusCode)
}

func TestProjectAndVersionByName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "name:Demo Project", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"totalCount": 2, "items": [
			{"name": "Demo Project Two", "_meta": {"href": "%[1]s/api/projects/p-2"}},
			{"name": "Demo Project", "_meta": {
				"href": "%[1]s/api/projects/p-1",
				"links": [{"rel": "versions", "href": "%[1]s/api/projects/p-1/versions"}]}}
		]}`, "http://"+r.Host) //nolint:errcheck
	})
	mux.HandleFunc("GET /api/projects/p-1/versions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "versionName:1.0", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"totalCount": 1, "items": [
			{"versionName": "1.0", "_meta": {"href": "%s/api/projects/p-1/versions/v-1"}}
		]}`, "http://"+r.Host) //nolint:errcheck
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	project, err := client.ProjectByName(context.Background(), "Demo Project")
	require.NoError(t, err)
	assert.Equal(t, "Demo Project", project.Name)
	assert.Equal(t, "p-1", project.Meta.ResourceID())

	version, err := client.VersionByName(context.Background(), project, "1.0")
	require.NoError(t, err)
	assert.Equal(t, "v-1", version.Meta.ResourceID())
}

func TestProjectByNameNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"totalCount": 0, "items": []}`) //nolint:errcheck
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	_, err := client.ProjectByName(context.Background(), "Missing")
	require.Error(t, err)
	assert.ErrorContains(t, err, `project "Missing" not found`)
}

func TestCurrentUserAndVersion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/current-user", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"userName": "sysadmin", "type": "internal"}`) //nolint:errcheck
	})
	mux.HandleFunc("GET /api/current-version", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"version": "2024.1.0"}`) //nolint:errcheck
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sysadmin", user.UserName)

	version, err := client.CurrentVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024.1.0", version)
}

func TestBearerTokenReused(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/current-user", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"userName": "sysadmin"}`) //nolint:errcheck
	})
	ts, authCalls := newHubServer(t, mux)

	client := newTestClient(ts)
	for range 3 {
		_, err := client.CurrentUser(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), authCalls.Load(), "bearer token must be cached across requests")
}

func TestAuthenticationFailure(t *testing.T) {
	ts, _ := newHubServer(t, http.NewServeMux())

	cfg := &Config{BaseURL: ts.URL, APIToken: "wrong-token", Timeout: 10 * time.Second}
	client := New(cfg, nil, &types.MockLogger{})

	_, err := client.CurrentUser(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "token authentication failed")
}

func TestGetJSONStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/thing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ts, _ := newHubServer(t, mux)

	client := newTestClient(ts)
	var out map[string]any
	err := client.GetJSON(context.Background(), ts.URL+"/api/thing", &out)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, errors.Is(err, context.Canceled))
}
