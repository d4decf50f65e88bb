package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealercast/internal/admission"
	"dealercast/internal/httpapi/handlers"
	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/ports"
	"dealercast/internal/renderer"
	"dealercast/internal/store/storetest"
	"dealercast/internal/webhook"
)

const whSecret = "test-secret"

type rosterStore struct {
	dealers []models.Dealer
}

func (s *rosterStore) ListDealers(_ context.Context) ([]models.Dealer, error) {
	return s.dealers, nil
}

func (s *rosterStore) GetDealer(_ context.Context, dealerNo string) (*models.Dealer, error) {
	for i := range s.dealers {
		if s.dealers[i].DealerNo == dealerNo {
			return &s.dealers[i], nil
		}
	}
	return nil, errors.NotFound("dealer", dealerNo)
}

func (s *rosterStore) ListFullDealers(_ context.Context, _, _ []string) ([]models.Dealer, error) {
	var out []models.Dealer
	for _, d := range s.dealers {
		if d.ProgramStatus == models.ProgramStatusFull {
			out = append(out, d)
		}
	}
	return out, nil
}

type templateStore struct {
	templates map[string]*models.Template
}

func (s *templateStore) CreateTemplate(_ context.Context, t *models.Template) error {
	if _, exists := s.templates[t.ID]; exists {
		return errors.Newf(errors.CodeConflict, "template name already exists: %s", t.Name)
	}
	s.templates[t.ID] = t
	return nil
}

func (s *templateStore) ListTemplates(_ context.Context) ([]models.Template, error) {
	out := make([]models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (s *templateStore) GetTemplate(_ context.Context, id string) (*models.Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, errors.NotFound("template", id)
	}
	return t, nil
}

func (s *templateStore) DeleteTemplate(_ context.Context, id string) error {
	if _, ok := s.templates[id]; !ok {
		return errors.NotFound("template", id)
	}
	delete(s.templates, id)
	return nil
}

type nullAssets struct{}

func (nullAssets) Provider() string { return "null" }
func (nullAssets) UploadVideo(_ context.Context, _ ports.UploadInput) (ports.UploadOutput, error) {
	return ports.UploadOutput{}, nil
}
func (nullAssets) ListDealerAssets(_ context.Context, _ string) ([]ports.Asset, error) {
	return nil, nil
}
func (nullAssets) MoveToArchive(_ context.Context, _, _ string) error { return nil }

type testEnv struct {
	fake   *storetest.Fake
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewDefault()
	fake := storetest.NewFake()
	roster := &rosterStore{dealers: []models.Dealer{
		{DealerNo: "D100", DisplayName: "Acme Motors", Phone: "555-0100", LogoURL: "https://cdn.example.com/acme.png", ProgramStatus: models.ProgramStatusFull},
		{DealerNo: "D300", DisplayName: "Cliffview Cars", ProgramStatus: models.ProgramStatusFull},
	}}

	router := NewRouter(handlers.Deps{
		Batches:   fake,
		Dealers:   roster,
		Templates: &templateStore{templates: make(map[string]*models.Template)},
		Admission: admission.NewService(fake, roster, nil, log),
		Webhook:   webhook.NewService(fake, nullAssets{}, nil, webhook.Options{Secret: whSecret}, log),
	}, Options{}, log)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{fake: fake, server: srv}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPostBatchAdmitsAndExposesBatch(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/batches", map[string]any{
		"post_number": 42,
		"template_id": "tmpl-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	batch := body["batch"].(map[string]any)
	assert.Equal(t, float64(1), batch["total_jobs"])
	assert.Equal(t, "queued", batch["status"])

	skipped := body["skipped"].([]any)
	require.Len(t, skipped, 1)
	assert.Equal(t, "missing logo asset", skipped[0].(map[string]any)["reason"])

	// The batch and its jobs are readable.
	batchID := batch["id"].(string)
	getResp, err := http.Get(env.server.URL + "/batches/" + batchID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	getResp.Body.Close()

	jobsResp, err := http.Get(env.server.URL + "/batches/" + batchID + "/jobs")
	require.NoError(t, err)
	jobsBody := decodeBody(t, jobsResp)
	assert.Len(t, jobsBody["jobs"].([]any), 1)
}

func TestPostBatchValidationError(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/batches", map[string]any{"template_id": "tmpl-1"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
}

func TestGetJobNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/jobs/job_missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestGetBatchJobsUnknownBatch(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/batches/batch_missing/jobs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookFailureFlow(t *testing.T) {
	env := newTestEnv(t)

	// Admit and claim so the job is in processing.
	resp := env.postJSON(t, "/batches", map[string]any{"post_number": 7, "template_id": "tmpl-1"})
	batchID := decodeBody(t, resp)["batch"].(map[string]any)["id"].(string)

	jobs, err := env.fake.ListBatchJobs(context.Background(), batchID)
	require.NoError(t, err)
	claimed, err := env.fake.ClaimPendingJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	meta, err := renderer.EncodeMetadata(renderer.JobMetadata{
		JobID: jobs[0].ID, BusinessID: jobs[0].BusinessID, PostNumber: 7,
	})
	require.NoError(t, err)
	payload, err := json.Marshal(renderer.WebhookPayload{
		ID: "rnd-1", Status: renderer.StatusFailed, ErrorMessage: "Invalid template", Metadata: meta,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/webhooks/render", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(renderer.SignatureHeader, renderer.Sign(whSecret, payload))

	whResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, whResp.StatusCode)
	body := decodeBody(t, whResp)
	assert.Equal(t, "failed", body["action"])

	job, err := env.fake.GetJob(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, "Invalid template", job.LastError)
}

func TestWebhookUnknownJobReturns404(t *testing.T) {
	env := newTestEnv(t)

	meta, err := renderer.EncodeMetadata(renderer.JobMetadata{
		JobID: "job_does_not_exist", BusinessID: "D100", PostNumber: 7,
	})
	require.NoError(t, err)
	payload, err := json.Marshal(renderer.WebhookPayload{
		ID: "rnd-9", Status: renderer.StatusSucceeded, URL: "https://cdn.example.com/x.mp4", Metadata: meta,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/webhooks/render", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(renderer.SignatureHeader, renderer.Sign(whSecret, payload))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	payload := []byte(`{"id":"rnd-1","status":"failed","metadata":"{\"jobId\":\"j1\"}"}`)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/webhooks/render", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(renderer.SignatureHeader, "sha256=deadbeef")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestListDealersReportsEligibility(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/dealers")
	require.NoError(t, err)
	body := decodeBody(t, resp)

	dealers := body["dealers"].([]any)
	require.Len(t, dealers, 2)
	byNo := make(map[string]map[string]any)
	for _, d := range dealers {
		m := d.(map[string]any)
		byNo[m["dealer_no"].(string)] = m
	}
	assert.Equal(t, true, byNo["D100"]["eligible"])
	assert.Equal(t, false, byNo["D300"]["eligible"])
	assert.Equal(t, "missing logo asset", byNo["D300"]["ineligible_reason"])
}

func TestTemplateCRUD(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/templates", map[string]any{
		"id":   "tmpl-abc",
		"name": "Spring Promo",
		"field_map": []map[string]string{
			{"field": "logo", "variable": "Logo"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(env.server.URL + "/templates/tmpl-abc")
	require.NoError(t, err)
	body := decodeBody(t, getResp)
	assert.Equal(t, "Spring Promo", body["template"].(map[string]any)["name"])

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/templates/tmpl-abc", nil)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()
}

func TestHealthWithoutProbes(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "skipped", checks["postgres"])
}
