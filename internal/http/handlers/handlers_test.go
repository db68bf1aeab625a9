package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"promoreel/internal/domain"
	"promoreel/internal/middleware"
)

type stubPipeline struct {
	concepts []domain.Concept
	err      error
	outcome  domain.VideoOutcome

	gotUser    string
	gotBrief   domain.BrandBrief
	gotConcept domain.Concept
}

func (s *stubPipeline) GenerateConcepts(ctx context.Context, userID string, brief domain.BrandBrief) ([]domain.Concept, error) {
	s.gotUser, s.gotBrief = userID, brief
	return s.concepts, s.err
}

func (s *stubPipeline) GenerateVideo(ctx context.Context, userID string, concept domain.Concept, brief domain.BrandBrief) domain.VideoOutcome {
	s.gotUser, s.gotBrief, s.gotConcept = userID, brief, concept
	return s.outcome
}

type stubCredits struct {
	balance int64
	err     error
}

func (s stubCredits) Balance(ctx context.Context, userID string) (int64, error) {
	return s.balance, s.err
}

type stubStore struct {
	prefix string
	stored []byte
	err    error
}

func (s *stubStore) Put(ctx context.Context, prefix string, a domain.Artifact) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.prefix, s.stored = prefix, a.Data
	return prefix + "/2026/01/01/abc.mp4", nil
}

func dataURI(mime, body string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte(body))
}

func do(t *testing.T, h http.HandlerFunc, method, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/", &buf)
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	ctx = context.WithValue(ctx, middleware.LocaleKey, "id")
	rec := httptest.NewRecorder()
	h(rec, req.WithContext(ctx))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func finTrackBrief() briefRequest {
	return briefRequest{
		Name:         "FinTrack",
		Kind:         "finance",
		SellingPoint: "Save money automatically",
		Tone:         "Professional",
		Logo:         dataURI("image/png", "logo"),
		AspectRatio:  "9:16",
		Duration:     "15s",
	}
}

func TestConceptsGenerate(t *testing.T) {
	p := &stubPipeline{concepts: []domain.Concept{{
		ID:          "c1",
		Description: "Coins fly into a vault",
		Script:      domain.SceneScript{Beats: []string{"open", "close"}},
		StartFrame:  domain.Artifact{Data: []byte("start"), MIMEType: domain.MIMETypePNG},
		EndFrame:    domain.Artifact{Data: []byte("end"), MIMEType: domain.MIMETypePNG},
	}}}
	app := NewApp(p, nil, nil, nil)

	rec := do(t, app.ConceptsGenerate, http.MethodPost, "user-1", finTrackBrief())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if p.gotUser != "user-1" || p.gotBrief.Logo == nil || string(p.gotBrief.Logo.Data) != "logo" {
		t.Fatalf("pipeline got user=%q brief=%+v", p.gotUser, p.gotBrief)
	}
	if p.gotBrief.Locale != "id" {
		t.Fatalf("locale = %q, want negotiated id", p.gotBrief.Locale)
	}

	var resp struct {
		Concepts []struct {
			ID         string            `json:"id"`
			Script     map[string]string `json:"script"`
			StartFrame string            `json:"start_frame"`
			EndFrame   string            `json:"end_frame"`
		} `json:"concepts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Concepts) != 1 || resp.Concepts[0].Script["scene2"] != "close" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Concepts[0].StartFrame != dataURI("image/png", "start") {
		t.Fatalf("start_frame = %q", resp.Concepts[0].StartFrame)
	}
}

func TestConceptsGenerateRejectsBadInput(t *testing.T) {
	app := NewApp(&stubPipeline{}, nil, nil, nil)

	if rec := do(t, app.ConceptsGenerate, http.MethodPost, "", finTrackBrief()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	rec := do(t, app.ConceptsGenerate, http.MethodPost, "user-1", "{not json")
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "bad_request" {
		t.Fatalf("malformed status = %d", rec.Code)
	}

	brief := finTrackBrief()
	brief.Logo = "data:image/png,notbase64"
	rec = do(t, app.ConceptsGenerate, http.MethodPost, "user-1", brief)
	if rec.Code != http.StatusBadRequest || !strings.Contains(decodeError(t, rec).Message, "logo") {
		t.Fatalf("bad logo status = %d", rec.Code)
	}

	brief = finTrackBrief()
	brief.References = []string{"a", "b", "c", "d", "e"}
	rec = do(t, app.ConceptsGenerate, http.MethodPost, "user-1", brief)
	if rec.Code != http.StatusBadRequest || !strings.Contains(decodeError(t, rec).Message, "references") {
		t.Fatalf("too many references status = %d", rec.Code)
	}
}

func TestConceptsGenerateBodyLimit(t *testing.T) {
	app := NewApp(&stubPipeline{}, nil, nil, nil)
	app.MaxBodyBytes = 16
	rec := do(t, app.ConceptsGenerate, http.MethodPost, "user-1", finTrackBrief())
	if rec.Code != http.StatusBadRequest || !strings.Contains(decodeError(t, rec).Message, "exceeds") {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestConceptsGenerateMapsPipelineErrors(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: &domain.InputError{Field: "tone"}, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{err: fmt.Errorf("%w: 50 credits required", domain.ErrInsufficientCredits), wantStatus: http.StatusPaymentRequired, wantCode: "insufficient_credits"},
		{err: fmt.Errorf("%w: script call: %w", domain.ErrConceptGenerationFailed, domain.ErrRateLimited), wantStatus: http.StatusTooManyRequests, wantCode: "rate_limited"},
		{err: fmt.Errorf("%w: all 4 candidates failed", domain.ErrNoViableConcepts), wantStatus: http.StatusBadGateway, wantCode: "no_viable_concepts"},
		{err: domain.ErrConceptGenerationFailed, wantStatus: http.StatusBadGateway, wantCode: "concept_generation_failed"},
		{err: domain.ErrConfigurationMissing, wantStatus: http.StatusServiceUnavailable, wantCode: "configuration_missing"},
		{err: fmt.Errorf("%w: script call: gemini: %w", domain.ErrConceptGenerationFailed, domain.ErrConfigurationMissing), wantStatus: http.StatusServiceUnavailable, wantCode: "configuration_missing"},
		{err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout, wantCode: "timeout"},
		{err: domain.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.wantCode, func(t *testing.T) {
			app := NewApp(&stubPipeline{err: tc.err}, nil, nil, nil)
			rec := do(t, app.ConceptsGenerate, http.MethodPost, "user-1", finTrackBrief())
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := decodeError(t, rec); got.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", got.Code, tc.wantCode)
			}
			if domain.Retryable(tc.err) != (rec.Header().Get("Retry-After") != "") {
				t.Fatalf("Retry-After = %q for %v", rec.Header().Get("Retry-After"), tc.err)
			}
		})
	}
}

func TestClassifySceneErrors(t *testing.T) {
	tests := []struct {
		err      error
		wantCode string
	}{
		{err: &domain.FilteredError{Index: 1, Reason: "celebrity"}, wantCode: "content_filtered"},
		{err: &domain.SceneError{Index: 2, Err: domain.ErrTimeout}, wantCode: "timeout"},
		{err: &domain.SceneError{Index: 0, Err: domain.ErrRateLimited}, wantCode: "rate_limited"},
		{err: &domain.SceneError{Index: 3, Err: errors.New("no video")}, wantCode: "scene_generation_failed"},
		{err: &domain.SceneError{Index: 0, Err: fmt.Errorf("gemini: %w", domain.ErrConfigurationMissing)}, wantCode: "configuration_missing"},
		{err: fmt.Errorf("scene 2: %w", context.Canceled), wantCode: "canceled"},
	}
	for _, tc := range tests {
		if _, code, _ := classify(tc.err); code != tc.wantCode {
			t.Fatalf("classify(%v) code = %q, want %q", tc.err, code, tc.wantCode)
		}
	}
}

func videoBody() videoRequest {
	return videoRequest{
		Concept: conceptDTO{
			ID:          "c1",
			Description: "Coins fly into a vault",
			Script:      domain.SceneScript{Beats: []string{"open", "close"}},
			StartFrame:  dataURI("image/png", "start"),
		},
		Brief: finTrackBrief(),
	}
}

func TestVideosGenerateReal(t *testing.T) {
	p := &stubPipeline{outcome: domain.VideoOutcome{
		Kind:        domain.OutcomeReal,
		Video:       domain.Artifact{URI: "https://example.com/v.mp4", Data: []byte("mp4"), MIMEType: domain.MIMETypeMP4},
		AspectRatio: "9:16",
		Scenes:      2,
	}}
	store := &stubStore{}
	app := NewApp(p, nil, store, nil)

	rec := do(t, app.VideosGenerate, http.MethodPost, "user-1", videoBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp videoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.VideoURL != dataURI("video/mp4", "mp4") || resp.Degraded || resp.Scenes != 2 || resp.AspectRatio != "9:16" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.StorageKey != "videos/user-1/2026/01/01/abc.mp4" || string(store.stored) != "mp4" {
		t.Fatalf("storage key = %q stored = %q", resp.StorageKey, store.stored)
	}
	if string(p.gotConcept.StartFrame.Data) != "start" || p.gotConcept.Script.Len() != 2 {
		t.Fatalf("concept = %+v", p.gotConcept)
	}
}

func TestVideosGenerateStoreFailureIsNotFatal(t *testing.T) {
	p := &stubPipeline{outcome: domain.VideoOutcome{
		Kind:  domain.OutcomeReal,
		Video: domain.Artifact{Data: []byte("mp4"), MIMEType: domain.MIMETypeMP4},
	}}
	app := NewApp(p, nil, &stubStore{err: errors.New("disk full")}, nil)
	rec := do(t, app.VideosGenerate, http.MethodPost, "user-1", videoBody())
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "storage_key") {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestVideosGenerateDegraded(t *testing.T) {
	p := &stubPipeline{outcome: domain.VideoOutcome{
		Kind:        domain.OutcomeDegraded,
		Video:       domain.Artifact{URI: "https://example.com/sample.mp4", MIMEType: domain.MIMETypeMP4},
		AspectRatio: "9:16",
		Scenes:      2,
		Reason:      "video backend is rate limited; returned a sample video",
	}}
	store := &stubStore{}
	app := NewApp(p, nil, store, nil)

	rec := do(t, app.VideosGenerate, http.MethodPost, "user-1", videoBody())
	var resp videoResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || !resp.Degraded || resp.VideoURL != "https://example.com/sample.mp4" || resp.Note == "" {
		t.Fatalf("status = %d resp = %+v", rec.Code, resp)
	}
	if store.stored != nil {
		t.Fatal("placeholder must not be stored")
	}
}

func TestVideosGenerateFailures(t *testing.T) {
	app := NewApp(&stubPipeline{outcome: domain.VideoOutcome{
		Kind: domain.OutcomeFailed,
		Err:  &domain.FilteredError{Index: 1, Reason: "unsafe"},
	}}, nil, nil, nil)
	rec := do(t, app.VideosGenerate, http.MethodPost, "user-1", videoBody())
	if rec.Code != http.StatusUnprocessableEntity || decodeError(t, rec).Code != "content_filtered" {
		t.Fatalf("filtered status = %d", rec.Code)
	}

	body := videoBody()
	body.Concept.StartFrame = ""
	rec = do(t, app.VideosGenerate, http.MethodPost, "user-1", body)
	if rec.Code != http.StatusBadRequest || !strings.Contains(decodeError(t, rec).Message, "concept.start_frame") {
		t.Fatalf("missing frame status = %d", rec.Code)
	}

	if rec := do(t, app.VideosGenerate, http.MethodPost, "", videoBody()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
}

func TestCreditsBalance(t *testing.T) {
	app := NewApp(nil, stubCredits{balance: 130}, nil, nil)
	rec := do(t, app.CreditsBalance, http.MethodGet, "user-1", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"credits":130}` {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	app = NewApp(nil, stubCredits{err: fmt.Errorf("user x: %w", domain.ErrNotFound)}, nil, nil)
	if rec := do(t, app.CreditsBalance, http.MethodGet, "user-1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user status = %d", rec.Code)
	}

	app = NewApp(nil, nil, nil, nil)
	if rec := do(t, app.CreditsBalance, http.MethodGet, "user-1", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no ledger status = %d", rec.Code)
	}
}
