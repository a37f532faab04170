// Package server provides the HTTP server for the dubbing API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// DubRequest is the HTTP request body for dubbing a video.
type DubRequest struct {
	// URL references the source video.
	URL string `json:"url" validate:"required,http_url"`
	// Lang is the target language name or code. Unknown values mean English.
	Lang string `json:"lang" validate:"omitempty,max=64"`
}

// DubResponse is the HTTP response after a successful dubbing run.
type DubResponse struct {
	// Status is always "success".
	Status string `json:"status"`
	// RunID identifies the run in server logs.
	RunID string `json:"run_id"`
	// GenderDetected is the speaker register: "male" or "female".
	GenderDetected string `json:"gender_detected"`
	// Language is the resolved target language name.
	Language string `json:"language"`
	// DriveLink is the public URL of the dubbed video.
	DriveLink string `json:"driveLink"`
}

// DetectRequest is the HTTP request body for voice detection.
type DetectRequest struct {
	// URL references the source video.
	URL string `json:"url" validate:"required,http_url"`
}

// DetectResponse is the HTTP response for voice detection.
type DetectResponse struct {
	Status         string `json:"status"`
	RunID          string `json:"run_id"`
	GenderDetected string `json:"gender_detected"`
	// MedianF0 is omitted when no voiced frames were found.
	MedianF0 *float64 `json:"median_f0,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Status is always "error".
	Status string `json:"status"`
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Stage is the pipeline stage that failed, if any.
	Stage string `json:"stage,omitempty"`
	// Link is set when the video was uploaded but could not be made public.
	Link string `json:"link,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
