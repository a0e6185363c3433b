package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const statusError = "error"

// shortenRequest represents the body of a request to shorten a URL.
type shortenRequest struct {
	URL        string     `json:"url" validate:"required,max=2048"`
	CustomCode string     `json:"custom_code,omitempty" validate:"omitempty,max=32"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type shortenResponse struct {
	Code      string     `json:"code"`
	ShortURL  string     `json:"short_url"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func toShortenResponse(baseURL string, url *entity.ShortURL) shortenResponse {
	return shortenResponse{
		Code:      url.Code,
		ShortURL:  strings.TrimRight(baseURL, "/") + "/" + url.Code,
		URL:       url.TargetURL,
		CreatedAt: url.CreatedAt,
		ExpiresAt: url.ExpiresAt,
	}
}

type statsResponse struct {
	Code           string           `json:"code"`
	TotalVisits    int64            `json:"total_visits"`
	UniqueDevices  int64            `json:"unique_devices"`
	UniqueOS       int64            `json:"unique_os"`
	VisitsByOS     map[string]int64 `json:"visits_by_os"`
	VisitsByDevice map[string]int64 `json:"visits_by_device"`
	LastVisitAt    *time.Time       `json:"last_visit_at,omitempty"`
}

func toStatsResponse(stats *entity.Stats) statsResponse {
	resp := statsResponse{
		Code:           stats.Code,
		TotalVisits:    stats.TotalVisits,
		UniqueDevices:  stats.UniqueDevices,
		UniqueOS:       stats.UniqueOS,
		VisitsByOS:     stats.VisitsByOS,
		VisitsByDevice: stats.VisitsByDevice,
		LastVisitAt:    stats.LastVisitAt,
	}

	if resp.VisitsByOS == nil {
		resp.VisitsByOS = map[string]int64{}
	}
	if resp.VisitsByDevice == nil {
		resp.VisitsByDevice = map[string]int64{}
	}

	return resp
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	unauthorizedResponse = errorResponse{
		Status:  statusError,
		Message: "invalid credentials",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "url not found",
	}

	codeTakenResponse = errorResponse{
		Status:  statusError,
		Message: "short code already taken",
	}

	invalidURLResponse = errorResponse{
		Status:  statusError,
		Message: "invalid url",
	}

	invalidCodeResponse = errorResponse{
		Status:  statusError,
		Message: "invalid short code",
	}

	invalidExpiryResponse = errorResponse{
		Status:  statusError,
		Message: "expires_at must be in the future",
	}

	rateLimitedResponse = errorResponse{
		Status:  statusError,
		Message: "rate limit exceeded",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

// errorStatus maps a use case error to its status code and body. ok is false
// for errors that are not part of the API contract.
func errorStatus(err error) (status int, resp errorResponse, ok bool) {
	switch {
	case errors.Is(err, entity.ErrRateLimited):
		return http.StatusTooManyRequests, rateLimitedResponse, true
	case errors.Is(err, entity.ErrURLNotFound):
		return http.StatusNotFound, urlNotFoundResponse, true
	case errors.Is(err, entity.ErrCodeAlreadyTaken):
		return http.StatusConflict, codeTakenResponse, true
	case errors.Is(err, entity.ErrInvalidURL):
		return http.StatusUnprocessableEntity, invalidURLResponse, true
	case errors.Is(err, entity.ErrInvalidCode):
		return http.StatusUnprocessableEntity, invalidCodeResponse, true
	case errors.Is(err, entity.ErrInvalidExpiry):
		return http.StatusUnprocessableEntity, invalidExpiryResponse, true
	default:
		return http.StatusInternalServerError, serverErrorResponse, false
	}
}

// retryAfterSeconds rounds d up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}

	return strconv.FormatInt(secs, 10)
}

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "max":
		return "value is too long"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
