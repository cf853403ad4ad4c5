package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blausher/modsvc/internal/config"
	"github.com/blausher/modsvc/internal/domain"
	"github.com/blausher/modsvc/internal/usecase"
)

type fakeListingRepo struct {
	listings    map[int64]domain.Listing
	sellers     map[int64]domain.Seller
	closeTaskID []int64
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: map[int64]domain.Listing{}, sellers: map[int64]domain.Seller{}}
}

func (f *fakeListingRepo) CreateListing(_ context.Context, sellerID, itemID int64, name, description string, category, imagesQty int) (domain.Listing, error) {
	seller, ok := f.sellers[sellerID]
	if !ok {
		return domain.Listing{}, domain.ErrSellerNotFound
	}
	if _, exists := f.listings[itemID]; exists {
		return domain.Listing{}, domain.ErrAlreadyExists
	}
	l := domain.Listing{ItemID: itemID, SellerID: sellerID, IsVerifiedSeller: seller.IsVerifiedSeller, Name: name, Description: description, Category: category, ImagesQty: imagesQty}
	f.listings[itemID] = l
	return l, nil
}

func (f *fakeListingRepo) SelectListing(_ context.Context, itemID int64) (domain.Listing, bool, error) {
	l, ok := f.listings[itemID]
	return l, ok, nil
}

func (f *fakeListingRepo) CreateSeller(_ context.Context, id int64, isVerifiedSeller bool) (domain.Seller, error) {
	if _, exists := f.sellers[id]; exists {
		return domain.Seller{}, domain.ErrAlreadyExists
	}
	s := domain.Seller{ID: id, IsVerifiedSeller: isVerifiedSeller}
	f.sellers[id] = s
	return s, nil
}

func (f *fakeListingRepo) CloseListing(_ context.Context, itemID int64) ([]int64, bool, error) {
	if _, ok := f.listings[itemID]; !ok {
		return nil, false, nil
	}
	delete(f.listings, itemID)
	return f.closeTaskID, true, nil
}

type fakeTaskRepo struct {
	nextID      int64
	tasks       map[int64]*domain.Task
	pendingByID map[int64]int64
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int64]*domain.Task{}, pendingByID: map[int64]int64{}}
}

func (f *fakeTaskRepo) CreatePending(_ context.Context, itemID int64) (domain.Task, error) {
	if taskID, ok := f.pendingByID[itemID]; ok {
		return *f.tasks[taskID], nil
	}
	f.nextID++
	task := &domain.Task{ID: f.nextID, ItemID: itemID, Status: domain.TaskPending}
	f.tasks[f.nextID] = task
	f.pendingByID[itemID] = f.nextID
	return *task, nil
}

func (f *fakeTaskRepo) GetTask(_ context.Context, taskID int64) (domain.Task, bool, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return domain.Task{}, false, nil
	}
	return *t, true, nil
}

func (f *fakeTaskRepo) ClaimAndComplete(context.Context, int64, bool, float64) (int64, bool, error) {
	return 0, false, nil
}
func (f *fakeTaskRepo) ClaimAndFail(context.Context, int64, string) (int64, bool, error) {
	return 0, false, nil
}

type fakeBus struct{ published []int64 }

func (b *fakeBus) PublishModerationRequest(_ context.Context, itemID int64) error {
	b.published = append(b.published, itemID)
	return nil
}
func (b *fakeBus) PublishDeadLetter(context.Context, domain.DeadLetter) error { return nil }

type fakeCache[T any] struct{ entries map[int64]T }

func newFakeCache[T any]() *fakeCache[T] { return &fakeCache[T]{entries: map[int64]T{}} }
func (c *fakeCache[T]) Get(_ context.Context, id int64) (T, bool) {
	v, ok := c.entries[id]
	return v, ok
}
func (c *fakeCache[T]) Set(_ context.Context, id int64, v T) { c.entries[id] = v }
func (c *fakeCache[T]) Delete(_ context.Context, id int64)   { delete(c.entries, id) }

type stubScorer struct{ probability float64 }

func (s stubScorer) Score(context.Context, [4]float64) (float64, error) { return s.probability, nil }

func newTestServer() (*Server, *fakeListingRepo) {
	listings := newFakeListingRepo()
	tasks := newFakeTaskRepo()
	bus := &fakeBus{}
	taskCache := newFakeCache[domain.TaskCacheEntry]()
	predictionCache := newFakeCache[domain.PredictionCacheEntry]()
	scorer := stubScorer{probability: 0.1}

	enqueue := usecase.NewEnqueueService(listings, tasks, bus)
	readAPI := usecase.NewReadAPIService(tasks, taskCache, listings, predictionCache, scorer)
	srv := NewServer(config.Config{}, listings, enqueue, readAPI, nil, nil, nil)
	return srv, listings
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateUserHandler_Success(t *testing.T) {
	srv, _ := newTestServer()
	body, _ := json.Marshal(createUserRequest{ID: 1, IsVerifiedSeller: true})
	r := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.CreateUserHandler()(w, r)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateUserHandler_ValidationError(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	srv.CreateUserHandler()(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAdvertisementHandler_SellerNotFound(t *testing.T) {
	srv, _ := newTestServer()
	body, _ := json.Marshal(createAdvertisementRequest{SellerID: 1, ItemID: 2, Name: "n"})
	r := httptest.NewRequest(http.MethodPost, "/advertisements", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.CreateAdvertisementHandler()(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseAdvertisementHandler_NotFound(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodPost, "/advertisements/404/close", nil)
	r = withURLParam(r, "item_id", "404")
	w := httptest.NewRecorder()

	srv.CloseAdvertisementHandler()(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseAdvertisementHandler_Success(t *testing.T) {
	srv, listings := newTestServer()
	listings.sellers[1] = domain.Seller{ID: 1}
	listings.listings[2] = domain.Listing{ItemID: 2, SellerID: 1}

	r := httptest.NewRequest(http.MethodPost, "/advertisements/2/close", nil)
	r = withURLParam(r, "item_id", "2")
	w := httptest.NewRecorder()

	srv.CloseAdvertisementHandler()(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "closed", body["status"])
}

func TestSimplePredictHandler_MissingQueryParam(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/simple_predict", nil)
	w := httptest.NewRecorder()

	srv.SimplePredictHandler()(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimplePredictHandler_Success(t *testing.T) {
	srv, listings := newTestServer()
	listings.sellers[1] = domain.Seller{ID: 1}
	listings.listings[2] = domain.Listing{ItemID: 2, SellerID: 1}

	r := httptest.NewRequest(http.MethodGet, "/simple_predict?item_id=2", nil)
	w := httptest.NewRecorder()

	srv.SimplePredictHandler()(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAsyncPredictHandler_Success(t *testing.T) {
	srv, listings := newTestServer()
	listings.sellers[1] = domain.Seller{ID: 1}
	listings.listings[2] = domain.Listing{ItemID: 2, SellerID: 1}

	body, _ := json.Marshal(predictRequest{ItemID: 2})
	r := httptest.NewRequest(http.MethodPost, "/async_predict", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.AsyncPredictHandler()(w, r)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestModerationResultHandler_NotFound(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/moderation_result/404", nil)
	r = withURLParam(r, "task_id", "404")
	w := httptest.NewRecorder()

	srv.ModerationResultHandler()(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthzHandler(t *testing.T) {
	srv, _ := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.HealthzHandler()(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyzHandler_AllOK(t *testing.T) {
	srv, _ := newTestServer()
	srv.DBCheck = func(context.Context) error { return nil }
	srv.RedisCheck = func(context.Context) error { return nil }
	srv.KafkaCheck = func(context.Context) error { return nil }

	r := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	srv.ReadyzHandler()(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
