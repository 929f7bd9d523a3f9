// Package evidence attaches deposit photos to closeouts and purges them once their retention
// window has passed.
package evidence

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// PhotoType classifies a closeout photo.
type PhotoType string

const (
	PhotoDepositRequired PhotoType = "deposit_required"
	PhotoPOSOptional     PhotoType = "pos_optional"
)

// Valid reports whether t is a known photo type.
func (t PhotoType) Valid() bool {
	return t == PhotoDepositRequired || t == PhotoPOSOptional
}

// Photo mirrors safe_closeout_photos.
type Photo struct {
	ID            int64     `json:"id"`
	CloseoutID    int64     `json:"closeout_id"`
	StoreID       int64     `json:"store_id"`
	PhotoType     PhotoType `json:"photo_type"`
	StorageBucket string    `json:"storage_bucket"`
	StoragePath   string    `json:"storage_path"`
	ContentType   string    `json:"content_type"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	PurgeAfter    time.Time `json:"purge_after"`
}

var (
	// ErrInvalidPhoto indicates a rejected attach or upload request.
	ErrInvalidPhoto = shared.E(shared.KindInvalidInput, "evidence: invalid photo")
	// ErrUnsupportedContentType indicates an upload that is not an accepted image format.
	ErrUnsupportedContentType = shared.E(shared.KindInvalidInput, "evidence: unsupported content type")
	// ErrCloseoutNotFound indicates the closeout is missing or outside the caller's stores.
	ErrCloseoutNotFound = shared.E(shared.KindNotFound, "evidence: closeout not found")
	// ErrCloseoutLocked indicates photos can no longer be attached.
	ErrCloseoutLocked = shared.E(shared.KindLocked, "evidence: closeout is locked")
)

// AttachInput records an already stored object against a closeout.
type AttachInput struct {
	CloseoutID    int64
	PhotoType     PhotoType
	StoragePath   string
	ContentType   string
	RetentionDays int
	ActorID       int64
	StoreIDs      []int64
}

// Validate checks the attach request.
func (in AttachInput) Validate() error {
	switch {
	case in.CloseoutID <= 0:
		return fmt.Errorf("%w: closeout id required", ErrInvalidPhoto)
	case !in.PhotoType.Valid():
		return fmt.Errorf("%w: photo type %q", ErrInvalidPhoto, in.PhotoType)
	case strings.TrimSpace(in.StoragePath) == "":
		return fmt.Errorf("%w: storage path required", ErrInvalidPhoto)
	case strings.TrimSpace(in.ContentType) == "":
		return fmt.Errorf("%w: content type required", ErrInvalidPhoto)
	case in.RetentionDays <= 0:
		return fmt.Errorf("%w: retention days %d", ErrInvalidPhoto, in.RetentionDays)
	case in.ActorID <= 0:
		return fmt.Errorf("%w: actor required", ErrInvalidPhoto)
	}
	return nil
}

// UploadInput streams a new photo into the object store.
type UploadInput struct {
	CloseoutID  int64
	PhotoType   PhotoType
	ContentType string
	ActorID     int64
	StoreIDs    []int64
	Body        io.Reader
}

// Validate checks the upload request.
func (in UploadInput) Validate() error {
	switch {
	case in.CloseoutID <= 0:
		return fmt.Errorf("%w: closeout id required", ErrInvalidPhoto)
	case !in.PhotoType.Valid():
		return fmt.Errorf("%w: photo type %q", ErrInvalidPhoto, in.PhotoType)
	case in.Body == nil:
		return fmt.Errorf("%w: body required", ErrInvalidPhoto)
	case in.ActorID <= 0:
		return fmt.Errorf("%w: actor required", ErrInvalidPhoto)
	}
	return nil
}

// SweepRequest scopes a purge run to StoreIDs, or to every store when AllStores is set.
type SweepRequest struct {
	Now             time.Time
	PurgeDayOfMonth int
	StoreIDs        []int64
	AllStores       bool
}

// Due reports whether the run falls on the purge day in UTC.
func (r SweepRequest) Due() bool {
	return r.PurgeDayOfMonth >= 1 && r.Now.UTC().Day() == r.PurgeDayOfMonth
}
