package evidencehttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/cashrecon/internal/evidence"
	"github.com/odyssey-erp/cashrecon/internal/platform/httpx"
)

// MaxUploadBytes caps a single photo upload.
const MaxUploadBytes = 10 << 20

type evidenceService interface {
	Attach(ctx context.Context, in evidence.AttachInput) (evidence.Photo, error)
	Upload(ctx context.Context, in evidence.UploadInput) (evidence.Photo, error)
	List(ctx context.Context, closeoutID int64, storeIDs []int64) ([]evidence.Photo, error)
}

// Handler wires HTTP endpoints for closeout evidence.
type Handler struct {
	logger    *slog.Logger
	service   evidenceService
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service evidenceService) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers evidence routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/closeouts/{id}/photos", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.upload)
		r.Post("/attach", h.attach)
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, fmt.Errorf("%w: photo exceeds %d bytes", evidence.ErrInvalidPhoto, MaxUploadBytes))
			return
		}
		httpx.RespondError(w, fmt.Errorf("%w: multipart form: %v", httpx.ErrBadRequest, err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("photo")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: photo file required", httpx.ErrBadRequest))
		return
	}
	defer file.Close()

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = evidence.ContentTypeFromName(header.Filename)
	}
	photo, err := h.service.Upload(r.Context(), evidence.UploadInput{
		CloseoutID:  id,
		PhotoType:   evidence.PhotoType(r.FormValue("photo_type")),
		ContentType: contentType,
		ActorID:     caller.UserID,
		StoreIDs:    caller.StoreIDs,
		Body:        file,
	})
	if err != nil {
		h.fail(w, "upload photo", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, photo)
}

type attachRequest struct {
	PhotoType     string `json:"photo_type" validate:"required,oneof=deposit_required pos_optional"`
	StoragePath   string `json:"storage_path" validate:"required,max=512"`
	ContentType   string `json:"content_type" validate:"required,max=128"`
	RetentionDays int    `json:"retention_days" validate:"required,gt=0,lte=3650"`
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req attachRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	photo, err := h.service.Attach(r.Context(), evidence.AttachInput{
		CloseoutID:    id,
		PhotoType:     evidence.PhotoType(req.PhotoType),
		StoragePath:   req.StoragePath,
		ContentType:   req.ContentType,
		RetentionDays: req.RetentionDays,
		ActorID:       caller.UserID,
		StoreIDs:      caller.StoreIDs,
	})
	if err != nil {
		h.fail(w, "attach photo", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, photo)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := httpx.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	photos, err := h.service.List(r.Context(), id, caller.StoreIDs)
	if err != nil {
		h.fail(w, "list photos", err)
		return
	}
	if photos == nil {
		photos = []evidence.Photo{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"photos": photos})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
