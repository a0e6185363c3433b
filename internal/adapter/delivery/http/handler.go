package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	Shorten(ctx context.Context, in usecase.ShortenInput) (*entity.ShortURL, error)
	Redirect(ctx context.Context, in usecase.RedirectInput) (*entity.ShortURL, error)
	Stats(ctx context.Context, id ratelimit.Identity, code string) (*entity.Stats, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	baseURL  string
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate, baseURL string) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
		baseURL:  baseURL,
	}
}

// renderError writes the response for a use case error.
func (h *urlHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp, ok := errorStatus(err)
	if !ok {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
	}

	var rlErr *entity.RateLimitError
	if errors.As(err, &rlErr) {
		w.Header().Set("Retry-After", retryAfterSeconds(rlErr.RetryAfter))
	}

	httplog.LogEntrySetField(r.Context(), "outcome", slog.StringValue(string(entity.OutcomeOf(err, ""))))

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func (h *urlHandler) shorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	url, err := h.useCase.Shorten(r.Context(), usecase.ShortenInput{
		Identity:   identityFrom(r),
		TargetURL:  req.URL,
		CustomCode: req.CustomCode,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toShortenResponse(h.baseURL, url))
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	url, err := h.useCase.Redirect(r.Context(), usecase.RedirectInput{
		Identity:  identityFrom(r),
		Code:      code,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, url.TargetURL, http.StatusFound)
}

func (h *urlHandler) stats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	stats, err := h.useCase.Stats(r.Context(), identityFrom(r), code)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toStatsResponse(stats))
}
