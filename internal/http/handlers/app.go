// Package handlers implements the HTTP API on top of the generation pipeline.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"promoreel/internal/domain"
	"promoreel/internal/infra"
	"promoreel/internal/middleware"
	"promoreel/internal/pipeline"
	"promoreel/internal/storage"
)

// DefaultMaxBodyBytes bounds request bodies, which carry inline images.
const DefaultMaxBodyBytes = 64 << 20

// Pipeline runs the two generation stages on behalf of a user.
type Pipeline interface {
	GenerateConcepts(ctx context.Context, userID string, brief domain.BrandBrief) ([]domain.Concept, error)
	GenerateVideo(ctx context.Context, userID string, concept domain.Concept, brief domain.BrandBrief) domain.VideoOutcome
}

type CreditReader interface {
	Balance(ctx context.Context, userID string) (int64, error)
}

// ArtifactStore keeps a copy of finished videos.
type ArtifactStore interface {
	Put(ctx context.Context, prefix string, a domain.Artifact) (string, error)
}

var (
	_ Pipeline      = (*pipeline.Orchestrator)(nil)
	_ ArtifactStore = (*storage.FileStore)(nil)
)

type App struct {
	Pipeline     Pipeline
	Credits      CreditReader
	Store        ArtifactStore
	Logger       *infra.Logger
	MaxBodyBytes int64
}

func NewApp(p Pipeline, credits CreditReader, store ArtifactStore, logger *infra.Logger) *App {
	return &App{
		Pipeline:     p,
		Credits:      credits,
		Store:        store,
		Logger:       infra.LoggerOrDiscard(logger),
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) logger(r *http.Request) *infra.Logger {
	if l := infra.LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return infra.LoggerOrDiscard(a.Logger)
}

// decode reads a JSON body, rejecting oversized and malformed payloads.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) error {
	limit := a.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &domain.InputError{Field: "body", Reason: fmt.Sprintf("exceeds %d bytes", tooLarge.Limit)}
		}
		return &domain.InputError{Field: "body", Reason: "invalid JSON payload"}
	}
	return nil
}

// fail writes the error envelope for err and logs server-side failures.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		a.logger(r).Error().Err(err).Str("code", code).Msg("http: request failed")
	}
	if domain.Retryable(err) {
		w.Header().Set("Retry-After", "30")
	}
	a.error(w, status, code, message)
}
