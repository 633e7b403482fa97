package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BRA7534/CARFAST/app/database"
	"github.com/BRA7534/CARFAST/app/harvest"
	"github.com/BRA7534/CARFAST/app/tasks"
)

const testKey = "test-key"

type mockHarvester struct {
	result harvest.Result
	err    error
	got    []harvest.Request
}

func (m *mockHarvester) Harvest(ctx context.Context, req harvest.Request) (harvest.Result, error) {
	m.got = append(m.got, req)
	return m.result, m.err
}

type mockReviews struct {
	reviews map[int64][]database.Review
	err     error
}

func (m *mockReviews) Save(ctx context.Context, bundles []database.ReviewBundle, modelID int64) (int, error) {
	return 0, nil
}

func (m *mockReviews) VerifyIntegrity(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *mockReviews) ListByModel(ctx context.Context, modelID int64) ([]database.Review, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.reviews[modelID], nil
}

func (m *mockReviews) Count(ctx context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	total := 0
	for _, list := range m.reviews {
		total += len(list)
	}
	return total, nil
}

type testServer struct {
	harvester *mockHarvester
	reviews   *mockReviews
	scheduler *tasks.Scheduler
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		harvester: &mockHarvester{},
		reviews: &mockReviews{reviews: map[int64][]database.Review{
			7: {{ID: 1, ModelID: 7, Source: "caradisiac", Year: 2024}},
		}},
	}
	ts.scheduler = tasks.NewScheduler(ts.reviews, 1, 0)
	t.Cleanup(ts.scheduler.Stop)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "carfast_harvests_total 0")
	})

	ts.handler = NewServer(NewHandler(ts.harvester, ts.reviews, ts.scheduler, metrics, "test"), testKey)
	return ts
}

func (ts *testServer) do(method, path, body string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("X-API-Key", testKey)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %v", health["status"])
	}
	if health["reviews"] != float64(1) {
		t.Errorf("Expected 1 review, got %v", health["reviews"])
	}

	rec = ts.do(http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "carfast_harvests_total") {
		t.Errorf("Expected metrics output, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/models/7/reviews", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/models/7/reviews", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	bearer := httptest.NewRecorder()
	ts.handler.ServeHTTP(bearer, req)
	if bearer.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer token, got %d", bearer.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/models/7/reviews", nil)
	req.Header.Set("X-API-Key", "wrong")
	wrong := httptest.NewRecorder()
	ts.handler.ServeHTTP(wrong, req)
	if wrong.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got %d", wrong.Code)
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	reviews := &mockReviews{}
	handler := NewServer(NewHandler(&mockHarvester{}, reviews, nil, nil, "test"), "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/harvest", strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestPostHarvestSync(t *testing.T) {
	ts := newTestServer(t)
	ts.harvester.result = harvest.Result{
		ModelID: 7,
		Reviews: []database.Review{{ModelID: 7, Source: "caradisiac", Year: 2024}},
		Sources: []harvest.SourceOutcome{{Source: "caradisiac", Reviews: 1}},
	}

	rec := ts.do(http.MethodPost, "/api/harvest", `{"brand":"Peugeot","model":"208","year":2024}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result harvest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.ModelID != 7 || len(result.Reviews) != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}

	want := harvest.Request{Brand: "Peugeot", Model: "208", Year: 2024}
	if len(ts.harvester.got) != 1 || ts.harvester.got[0] != want {
		t.Errorf("Expected request %+v, got %+v", want, ts.harvester.got)
	}
}

func TestPostHarvestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: year 1990 out of range", harvest.ErrInvalidArgument), http.StatusBadRequest},
		{"unauthorized", fmt.Errorf("%w: license expired", harvest.ErrUnauthorized), http.StatusForbidden},
		{"unknown model", fmt.Errorf("%w: model 99 does not exist", harvest.ErrReferentialIntegrity), http.StatusNotFound},
		{"storage", errors.New("database is locked"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.harvester.err = tt.err

			rec := ts.do(http.MethodPost, "/api/harvest", `{"brand":"Peugeot","model":"208","year":2024}`, true)
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "locked") {
				t.Error("Expected internal error details to stay out of the response")
			}
		})
	}
}

func TestPostHarvestBadBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/harvest", `{"brand":`, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
	if len(ts.harvester.got) != 0 {
		t.Error("Expected harvester not to be called")
	}
}

func TestPostHarvestAsync(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/harvest?async=true", `{"brand":"Peugeot","model":"208","year":2024}`, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rec.Code)
	}

	var accepted harvestAccepted
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.TaskID == "" {
		t.Fatal("Expected a task id")
	}

	rec = ts.do(http.MethodGet, "/api/tasks/"+accepted.TaskID, "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var status tasks.TaskStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Type != tasks.TaskTypeHarvest || status.State != tasks.TaskStateQueued {
		t.Errorf("Expected queued harvest task, got %s %s", status.Type, status.State)
	}
	if status.Subject != "Peugeot 208 2024" {
		t.Errorf("Expected subject 'Peugeot 208 2024', got '%s'", status.Subject)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/tasks/missing", "", true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetModelReviews(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/models/7/reviews", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp reviewsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ModelID != 7 || resp.Total != 1 {
		t.Errorf("Expected one review for model 7, got %+v", resp)
	}

	rec = ts.do(http.MethodGet, "/api/models/abc/reviews", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad id, got %d", rec.Code)
	}
}

func TestPostVerifyIntegrity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/integrity/verify", "", true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}

	status, ok := ts.scheduler.Status(body["task_id"])
	if !ok {
		t.Fatal("Expected integrity task to be tracked")
	}
	if status.Type != tasks.TaskTypeVerifyIntegrity {
		t.Errorf("Expected verify_integrity task, got %s", status.Type)
	}
}
