package usecase

import (
	"context"
	"errors"

	"github.com/blausher/modsvc/internal/domain"
)

type fakeListingRepo struct {
	listings    map[int64]domain.Listing
	sellers     map[int64]domain.Seller
	closeErr    error
	closeTaskID []int64
	closeOK     bool
	selectErr   error
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
	if f.selectErr != nil {
		return domain.Listing{}, false, f.selectErr
	}
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
	if f.closeErr != nil {
		return nil, false, f.closeErr
	}
	if _, ok := f.listings[itemID]; !ok {
		return nil, false, nil
	}
	delete(f.listings, itemID)
	return f.closeTaskID, true, nil
}

type fakeTaskRepo struct {
	nextID      int64
	tasks       map[int64]*domain.Task
	pendingByID map[int64]int64 // itemID -> taskID still pending
	createErr   error
	claimErr    error

	// claimFailFailuresBeforeSuccess makes ClaimAndFail return claimErr this
	// many times before succeeding, to exercise the worker's retry-on-write
	// path.
	claimFailFailuresBeforeSuccess int
	claimFailCalls                 int
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int64]*domain.Task{}, pendingByID: map[int64]int64{}}
}

func (f *fakeTaskRepo) CreatePending(_ context.Context, itemID int64) (domain.Task, error) {
	if f.createErr != nil {
		return domain.Task{}, f.createErr
	}
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

func (f *fakeTaskRepo) ClaimAndComplete(_ context.Context, itemID int64, isViolation bool, probability float64) (int64, bool, error) {
	if f.claimErr != nil {
		return 0, false, f.claimErr
	}
	taskID, ok := f.pendingByID[itemID]
	if !ok {
		return 0, false, nil
	}
	delete(f.pendingByID, itemID)
	t := f.tasks[taskID]
	t.Status = domain.TaskCompleted
	t.IsViolation = &isViolation
	t.Probability = &probability
	return taskID, true, nil
}

func (f *fakeTaskRepo) ClaimAndFail(_ context.Context, itemID int64, errMessage string) (int64, bool, error) {
	if f.claimFailCalls < f.claimFailFailuresBeforeSuccess {
		f.claimFailCalls++
		return 0, false, f.claimErr
	}
	if f.claimErr != nil && f.claimFailFailuresBeforeSuccess == 0 {
		return 0, false, f.claimErr
	}
	taskID, ok := f.pendingByID[itemID]
	if !ok {
		return 0, false, nil
	}
	delete(f.pendingByID, itemID)
	t := f.tasks[taskID]
	t.Status = domain.TaskFailed
	t.ErrorMessage = &errMessage
	return taskID, true, nil
}

// dummyBus records every publish; it mirrors the Python DummyProducer fake.
type dummyBus struct {
	published    []int64
	deadLetters  []domain.DeadLetter
	publishErr   error
	deadLetterFn func(domain.DeadLetter) error
}

func (b *dummyBus) PublishModerationRequest(_ context.Context, itemID int64) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, itemID)
	return nil
}

func (b *dummyBus) PublishDeadLetter(_ context.Context, dl domain.DeadLetter) error {
	if b.deadLetterFn != nil {
		if err := b.deadLetterFn(dl); err != nil {
			return err
		}
	}
	b.deadLetters = append(b.deadLetters, dl)
	return nil
}

type stubScorer struct {
	probability float64
	err         error
}

func (s stubScorer) Score(_ context.Context, _ [4]float64) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.probability, nil
}

type fakeTaskCache struct {
	entries map[int64]domain.TaskCacheEntry
}

func newFakeTaskCache() *fakeTaskCache { return &fakeTaskCache{entries: map[int64]domain.TaskCacheEntry{}} }

func (c *fakeTaskCache) Get(_ context.Context, taskID int64) (domain.TaskCacheEntry, bool) {
	e, ok := c.entries[taskID]
	return e, ok
}
func (c *fakeTaskCache) Set(_ context.Context, taskID int64, entry domain.TaskCacheEntry) {
	c.entries[taskID] = entry
}
func (c *fakeTaskCache) Delete(_ context.Context, taskID int64) { delete(c.entries, taskID) }

type fakePredictionCache struct {
	entries map[int64]domain.PredictionCacheEntry
}

func newFakePredictionCache() *fakePredictionCache {
	return &fakePredictionCache{entries: map[int64]domain.PredictionCacheEntry{}}
}

func (c *fakePredictionCache) Get(_ context.Context, itemID int64) (domain.PredictionCacheEntry, bool) {
	e, ok := c.entries[itemID]
	return e, ok
}
func (c *fakePredictionCache) Set(_ context.Context, itemID int64, entry domain.PredictionCacheEntry) {
	c.entries[itemID] = entry
}
func (c *fakePredictionCache) Delete(_ context.Context, itemID int64) { delete(c.entries, itemID) }

var errBoom = errors.New("boom")
