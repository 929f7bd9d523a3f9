package drawerhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashrecon/internal/drawer"
	"github.com/odyssey-erp/cashrecon/internal/rbac"
)

type stubDrawerService struct {
	recordFn func(ctx context.Context, in drawer.RecordCountInput) (drawer.Count, error)
	listFn   func(ctx context.Context, storeIDs []int64, limit int) ([]drawer.Count, error)
	reviewFn func(ctx context.Context, in drawer.ReviewInput) (drawer.Count, error)
}

func (s *stubDrawerService) RecordCount(ctx context.Context, in drawer.RecordCountInput) (drawer.Count, error) {
	return s.recordFn(ctx, in)
}

func (s *stubDrawerService) ListUnreviewed(ctx context.Context, storeIDs []int64, limit int) ([]drawer.Count, error) {
	return s.listFn(ctx, storeIDs, limit)
}

func (s *stubDrawerService) Review(ctx context.Context, in drawer.ReviewInput) (drawer.Count, error) {
	return s.reviewFn(ctx, in)
}

type stubStores struct{}

func (stubStores) AuthorizedStores(context.Context, int64) ([]int64, error) {
	return []int64{1, 2}, nil
}

func newTestRouter(svc *stubDrawerService) http.Handler {
	mw := rbac.Middleware{Stores: stubStores{}}
	r := chi.NewRouter()
	r.Use(mw.Identify)
	NewHandler(nil, svc, mw).MountRoutes(r)
	return r
}

func TestRecordCountParsesMajorUnits(t *testing.T) {
	var captured drawer.RecordCountInput
	svc := &stubDrawerService{
		recordFn: func(_ context.Context, in drawer.RecordCountInput) (drawer.Count, error) {
			captured = in
			return drawer.Count{ID: 9, StoreID: in.StoreID, DrawerCents: in.DrawerCents, VarianceCents: -150, OutOfThreshold: true}, nil
		},
	}
	body := `{"shift_id": 4, "count_type": "end", "drawer": "198.50"}`
	req := httptest.NewRequest(http.MethodPost, "/stores/1/drawer-counts", strings.NewReader(body))
	req.Header.Set(rbac.UserHeader, "5")
	rr := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, int64(19850), captured.DrawerCents)
	assert.Equal(t, int64(5), captured.ActorID)
	assert.Equal(t, drawer.CountEnd, captured.CountType)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "-1.50", resp["variance"])
	assert.Equal(t, true, resp["out_of_threshold"])
}

func TestRecordCountRejectsForeignStoreAndBadInput(t *testing.T) {
	svc := &stubDrawerService{
		recordFn: func(context.Context, drawer.RecordCountInput) (drawer.Count, error) {
			t.Fatal("service must not be called")
			return drawer.Count{}, nil
		},
	}
	router := newTestRouter(svc)

	cases := []struct {
		path string
		body string
		want int
	}{
		{"/stores/3/drawer-counts", `{"shift_id": 4, "count_type": "end", "drawer": "1.00"}`, http.StatusForbidden},
		{"/stores/1/drawer-counts", `{"shift_id": 4, "count_type": "lunch", "drawer": "1.00"}`, http.StatusBadRequest},
		{"/stores/1/drawer-counts", `{"shift_id": 4, "count_type": "end", "drawer": "-1.00"}`, http.StatusBadRequest},
		{"/stores/1/drawer-counts", `{"shift_id": 4, "count_type": "end", "drawer": "1.001"}`, http.StatusBadRequest},
		{"/stores/1/drawer-counts", `{"shift": 4}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
		req.Header.Set(rbac.UserHeader, "5")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, tc.want, rr.Code, tc.body)
	}
}

func TestReviewSecondCallIsNotFound(t *testing.T) {
	calls := 0
	svc := &stubDrawerService{
		reviewFn: func(_ context.Context, in drawer.ReviewInput) (drawer.Count, error) {
			calls++
			if calls > 1 {
				return drawer.Count{}, drawer.ErrCountNotFound
			}
			assert.Equal(t, []int64{1, 2}, in.StoreIDs)
			assert.Equal(t, "ok", in.Note)
			return drawer.Count{ID: in.CountID}, nil
		},
	}
	router := newTestRouter(svc)

	for i, want := range []int{http.StatusOK, http.StatusNotFound} {
		req := httptest.NewRequest(http.MethodPost, "/drawer-counts/12/review", strings.NewReader(`{"note":"ok"}`))
		req.Header.Set(rbac.UserHeader, "5")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, "call %d", i)
	}
}

func TestListUnreviewedUsesCallerStores(t *testing.T) {
	svc := &stubDrawerService{
		listFn: func(_ context.Context, storeIDs []int64, limit int) ([]drawer.Count, error) {
			assert.Equal(t, []int64{1, 2}, storeIDs)
			assert.Equal(t, 20, limit)
			return []drawer.Count{{ID: 1, StoreID: 2}}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/drawer-counts/unreviewed?limit=20", nil)
	req.Header.Set(rbac.UserHeader, "5")
	rr := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"store_id":2`)
}
