package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/dubbing-api/internal/dub"
)

// Dubber runs dubbing pipelines. *dub.Service implements it.
type Dubber interface {
	Dub(ctx context.Context, req dub.Request) (*dub.Result, error)
	DetectVoice(ctx context.Context, sourceURL string) (*dub.VoiceResult, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   Dubber
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service Dubber, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Home handles GET / requests.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Video dubbing API is running\n"))
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Dub handles POST /api/dub requests. The run executes within the request,
// so a client disconnect cancels it.
func (h *Handlers) Dub(w http.ResponseWriter, r *http.Request) {
	var req DubRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Dub(r.Context(), dub.Request{SourceURL: req.URL, TargetLanguage: req.Lang})
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewDubResponse(res))
}

// DetectGender handles POST /api/detect_gender requests.
func (h *Handlers) DetectGender(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.DetectVoice(r.Context(), req.URL)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewDetectResponse(res))
}

// decode reads and validates a JSON body into dst. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "INVALID_JSON"})
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"})
		return false
	}
	return true
}

func (h *Handlers) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := NewErrorResponse(err)
	h.logger.Error("run request failed",
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.Int("status", status),
		slog.String("code", resp.Code),
		slog.String("stage", resp.Stage),
		slog.String("error", err.Error()),
	)
	writeError(w, status, resp)
}

// NewDubResponse converts a run result into its wire form.
func NewDubResponse(res *dub.Result) DubResponse {
	return DubResponse{
		Status:         "success",
		RunID:          res.RunID,
		GenderDetected: res.Register.String(),
		Language:       res.Language.Name,
		DriveLink:      res.Link,
	}
}

// NewDetectResponse converts a voice detection result into its wire form.
func NewDetectResponse(res *dub.VoiceResult) DetectResponse {
	resp := DetectResponse{
		Status:         "success",
		RunID:          res.RunID,
		GenderDetected: res.Register.String(),
	}
	if res.Profile.Detected {
		f0 := res.Profile.MedianF0Hz
		resp.MedianF0 = &f0
	}
	return resp
}

// stageCodes maps failure kinds to error codes.
var stageCodes = []struct {
	kind error
	code string
}{
	// ErrPublishPartial also matches ErrPublishFailed, so it comes first.
	{dub.ErrPublishPartial, "PUBLISH_PARTIAL"},
	{dub.ErrAcquisitionFailed, "ACQUISITION_FAILED"},
	{dub.ErrExtractionFailed, "EXTRACTION_FAILED"},
	{dub.ErrTranscriptionFailed, "TRANSCRIPTION_FAILED"},
	{dub.ErrTranslationFailed, "TRANSLATION_FAILED"},
	{dub.ErrSynthesisFailed, "SYNTHESIS_FAILED"},
	{dub.ErrPitchAdjustmentFailed, "PITCH_ADJUSTMENT_FAILED"},
	{dub.ErrRemuxFailed, "REMUX_FAILED"},
	{dub.ErrPublishFailed, "PUBLISH_FAILED"},
}

// NewErrorResponse maps a run error to an HTTP status and error body.
// Invalid requests are 400, cancelled or timed out runs 503, and stage
// failures 502.
func NewErrorResponse(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Status: "error", Error: err.Error()}
	if st, ok := dub.FailedStage(err); ok {
		resp.Stage = string(st)
	}
	if link, ok := dub.PublishedLink(err); ok {
		resp.Link = link
	}

	switch {
	case errors.Is(err, dub.ErrInvalidRequest):
		resp.Code = "INVALID_REQUEST"
		return http.StatusBadRequest, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = "RUN_TIMEOUT"
		return http.StatusServiceUnavailable, resp
	case errors.Is(err, context.Canceled):
		resp.Code = "RUN_CANCELLED"
		return http.StatusServiceUnavailable, resp
	}

	for _, sc := range stageCodes {
		if errors.Is(err, sc.kind) {
			resp.Code = sc.code
			return http.StatusBadGateway, resp
		}
	}

	resp.Code = "INTERNAL_ERROR"
	return http.StatusInternalServerError, resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	resp.Status = "error"
	writeJSON(w, status, resp)
}
