package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// maxBodyBytes caps request bodies; every request is a small JSON document.
const maxBodyBytes = 64 << 10

// Service is the job control surface the router exposes. Start, Retry, and
// Resume return once the job is claimed; stages run in the background.
type Service interface {
	Submit(ctx context.Context, sourceRef string) (*jobs.Job, error)
	Start(ctx context.Context, sourceRef string) (*jobs.Job, error)
	Retry(ctx context.Context, jobID string, step int) (*jobs.Job, error)
	Resume(ctx context.Context, jobID string) (*jobs.Job, error)
	Get(ctx context.Context, jobID string) (*jobs.Job, error)
	List(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Job, error)
	Status(ctx context.Context) DaemonStatus
}

type handler struct {
	svc    Service
	logger *slog.Logger
}

// NewRouter builds the chi router for svc. An empty token disables authentication.
func NewRouter(svc Service, token string, logger *slog.Logger) http.Handler {
	h := &handler{svc: svc, logger: logging.NewComponentLogger(logger, "api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware(strings.TrimSpace(token)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.listJobs)
			r.Post("/", h.createJob)
			r.Post("/start", h.startJob)
			r.Get("/{id}", h.getJob)
			r.Post("/{id}/retry", h.retryJob)
			r.Post("/{id}/resume", h.resumeJob)
		})
	})
	return r
}

// authMiddleware validates bearer tokens. With an empty token every request
// passes through.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, h.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Elapsed(time.Since(started)),
		)
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.ListFilter{
		SourceRef:      strings.TrimSpace(query.Get("source")),
		IncludeDeleted: truthy(query.Get("all")),
	}
	for _, value := range query["status"] {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := jobs.ParseStatus(part)
			if !ok {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown status " + part})
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	list, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: FromJobs(list)})
}

func (h *handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.svc.Submit(r.Context(), req.SourceRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, JobResponse{Job: FromJob(job, false)})
}

func (h *handler) startJob(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.svc.Start(r.Context(), req.SourceRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, JobResponse{Job: FromJob(job, false)})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{Job: FromJob(job, truthy(r.URL.Query().Get("timestamps")))})
}

func (h *handler) retryJob(w http.ResponseWriter, r *http.Request) {
	var req RetryRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.svc.Retry(r.Context(), chi.URLParam(r, "id"), req.Step)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, JobResponse{Job: FromJob(job, false)})
}

func (h *handler) resumeJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, JobResponse{Job: FromJob(job, false)})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// httpStatus maps an error to a response code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrMissingPrerequisite), errors.Is(err, services.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidMedia):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	resp := ErrorResponse{Error: err.Error()}
	if details := services.Details(err); details.Kind != "unknown" {
		resp.Kind = details.Kind
		resp.Hint = details.Hint
	}
	if code >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), h.logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func truthy(value string) bool {
	value = strings.TrimSpace(value)
	return value == "1" || strings.EqualFold(value, "true")
}
