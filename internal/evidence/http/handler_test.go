package evidencehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashrecon/internal/evidence"
	"github.com/odyssey-erp/cashrecon/internal/rbac"
)

type stubEvidenceService struct {
	uploaded evidence.UploadInput
	body     string
	attached evidence.AttachInput
	err      error
}

func (s *stubEvidenceService) Attach(_ context.Context, in evidence.AttachInput) (evidence.Photo, error) {
	s.attached = in
	if s.err != nil {
		return evidence.Photo{}, s.err
	}
	return evidence.Photo{ID: 2, CloseoutID: in.CloseoutID, StoragePath: in.StoragePath}, nil
}

func (s *stubEvidenceService) Upload(_ context.Context, in evidence.UploadInput) (evidence.Photo, error) {
	s.uploaded = in
	if s.err != nil {
		return evidence.Photo{}, s.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return evidence.Photo{}, err
	}
	s.body = string(data)
	return evidence.Photo{ID: 1, CloseoutID: in.CloseoutID, PhotoType: in.PhotoType, ContentType: in.ContentType}, nil
}

func (s *stubEvidenceService) List(_ context.Context, closeoutID int64, _ []int64) ([]evidence.Photo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

type stubStores struct{}

func (stubStores) AuthorizedStores(context.Context, int64) ([]int64, error) {
	return []int64{1}, nil
}

func serve(t *testing.T, svc *stubEvidenceService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	mw := rbac.Middleware{Stores: stubStores{}}
	r := chi.NewRouter()
	r.Use(mw.Identify)
	NewHandler(nil, svc).MountRoutes(r)
	req.Header.Set(rbac.UserHeader, "4")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func multipartRequest(t *testing.T, photoType, filename, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("photo_type", photoType))
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="photo"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/closeouts/10/photos/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStreamsMultipartFile(t *testing.T) {
	svc := &stubEvidenceService{}
	rr := serve(t, svc, multipartRequest(t, "deposit_required", "slip.jpg", "image/jpeg", "jpeg-bytes"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	assert.Equal(t, int64(10), svc.uploaded.CloseoutID)
	assert.Equal(t, evidence.PhotoDepositRequired, svc.uploaded.PhotoType)
	assert.Equal(t, "image/jpeg", svc.uploaded.ContentType)
	assert.Equal(t, int64(4), svc.uploaded.ActorID)
	assert.Equal(t, []int64{1}, svc.uploaded.StoreIDs)
	assert.Equal(t, "jpeg-bytes", svc.body)
}

func TestUploadGuessesContentTypeFromFilename(t *testing.T) {
	svc := &stubEvidenceService{}
	rr := serve(t, svc, multipartRequest(t, "pos_optional", "receipt.png", "application/octet-stream", "png"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "image/png", svc.uploaded.ContentType)
}

func TestUploadRequiresFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("photo_type", "deposit_required"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/closeouts/10/photos/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := serve(t, &stubEvidenceService{}, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadMapsLockedCloseout(t *testing.T) {
	svc := &stubEvidenceService{err: evidence.ErrCloseoutLocked}
	rr := serve(t, svc, multipartRequest(t, "deposit_required", "slip.jpg", "image/jpeg", "x"))
	assert.Equal(t, http.StatusLocked, rr.Code)
}

func TestAttachBindsJSON(t *testing.T) {
	svc := &stubEvidenceService{}
	body := `{"photo_type":"pos_optional","storage_path":"closeouts/10/pos.jpg","content_type":"image/jpeg","retention_days":14}`
	req := httptest.NewRequest(http.MethodPost, "/closeouts/10/photos/attach", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(t, svc, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 14, svc.attached.RetentionDays)
	assert.Equal(t, evidence.PhotoPOSOptional, svc.attached.PhotoType)

	bad := httptest.NewRequest(http.MethodPost, "/closeouts/10/photos/attach", strings.NewReader(`{"photo_type":"selfie"}`))
	bad.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(t, svc, bad).Code)
}

func TestListReturnsEmptyArray(t *testing.T) {
	rr := serve(t, &stubEvidenceService{}, httptest.NewRequest(http.MethodGet, "/closeouts/10/photos/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var payload map[string][]evidence.Photo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.NotNil(t, payload["photos"])
	assert.Empty(t, payload["photos"])
}
