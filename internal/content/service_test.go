// Copyright (c) 2026 Atrium. All rights reserved.

package content_test

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/content"
	"github.com/atriumhq/atrium/internal/platform/apperr"
)

// fakeStore is an in-memory implementation of the content repositories.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	submissions map[int64]*content.Submission
	published   map[int64]*content.Published
	likes       map[string]bool
	viewTotals  map[int64]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:      1,
		submissions: make(map[int64]*content.Submission),
		published:   make(map[int64]*content.Published),
		likes:       make(map[string]bool),
		viewTotals:  make(map[int64]int64),
	}
}

func (store *fakeStore) Create(_ context.Context, submission *content.Submission) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	submission.ID = store.nextID
	store.nextID++
	submission.CreatedAt = time.Now()

	clone := *submission
	store.submissions[submission.ID] = &clone
	return nil
}

func (store *fakeStore) FindByID(_ context.Context, id int64) (*content.Submission, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	submission, ok := store.submissions[id]
	if !ok {
		return nil, apperr.NotFound("Submission")
	}
	clone := *submission
	return &clone, nil
}

func (store *fakeStore) ListByAuthor(_ context.Context, authorUID string, limit, offset int) ([]*content.Submission, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var result []*content.Submission
	for _, submission := range store.submissions {
		if submission.AuthorUID == authorUID {
			clone := *submission
			result = append(result, &clone)
		}
	}
	return result, len(result), nil
}

func (store *fakeStore) ListByStatus(_ context.Context, status content.SubmissionStatus, limit, offset int) ([]*content.Submission, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var result []*content.Submission
	for _, submission := range store.submissions {
		if submission.Status == status {
			clone := *submission
			result = append(result, &clone)
		}
	}
	return result, len(result), nil
}

func (store *fakeStore) Approve(_ context.Context, submissionID int64, published *content.Published) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	submission, ok := store.submissions[submissionID]
	if !ok {
		return apperr.NotFound("Submission")
	}
	if submission.Status != content.StatusPending {
		return apperr.Conflict("Submission has already been reviewed")
	}

	now := time.Now()
	submission.Status = content.StatusApproved
	submission.ReviewedAt = &now

	published.ID = store.nextID
	store.nextID++
	clone := *published
	store.published[published.ID] = &clone
	return nil
}

func (store *fakeStore) Reject(_ context.Context, submissionID int64, note string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	submission, ok := store.submissions[submissionID]
	if !ok {
		return apperr.NotFound("Submission")
	}
	if submission.Status != content.StatusPending {
		return apperr.Conflict("Submission has already been reviewed")
	}

	now := time.Now()
	submission.Status = content.StatusRejected
	submission.ReviewNote = &note
	submission.ReviewedAt = &now
	return nil
}

func (store *fakeStore) List(_ context.Context, filter content.FeedFilter, limit, offset int) ([]*content.Published, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var result []*content.Published
	for _, published := range store.published {
		if filter.CategoryID > 0 && published.CategoryID != filter.CategoryID {
			continue
		}
		clone := *published
		result = append(result, &clone)
	}
	return result, len(result), nil
}

func (store *fakeStore) FindBySlug(_ context.Context, slug string) (*content.Published, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, published := range store.published {
		if published.Slug == slug {
			clone := *published
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Post")
}

func (store *fakeStore) FindPublishedByID(_ context.Context, id int64) (*content.Published, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	published, ok := store.published[id]
	if !ok {
		return nil, apperr.NotFound("Post")
	}
	clone := *published
	return &clone, nil
}

func (store *fakeStore) Like(_ context.Context, publishedID int64, userUID string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	key := userUID + "|" + strconv.FormatInt(publishedID, 10)
	if store.likes[key] {
		return false, nil
	}
	store.likes[key] = true
	if published, ok := store.published[publishedID]; ok {
		published.Likes++
	}
	return true, nil
}

func (store *fakeStore) AddViews(_ context.Context, publishedID int64, delta int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.viewTotals[publishedID] += delta
	if published, ok := store.published[publishedID]; ok {
		published.Views += delta
	}
	return nil
}

func (store *fakeStore) appliedViews(publishedID int64) int64 {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.viewTotals[publishedID]
}

// publishedRepo adapts fakeStore to content.PublishedRepository, whose
// FindByID collides with the submission lookup of the same name.
type publishedRepo struct{ *fakeStore }

func (repo publishedRepo) FindByID(ctx context.Context, id int64) (*content.Published, error) {
	return repo.FindPublishedByID(ctx, id)
}

// fakeViewCounter is an in-memory stand-in for the Redis view buffer.
type fakeViewCounter struct {
	mu       sync.Mutex
	buffered map[int64]int64
	failing  bool
}

func newFakeViewCounter() *fakeViewCounter {
	return &fakeViewCounter{buffered: make(map[int64]int64)}
}

func (counter *fakeViewCounter) Increment(_ context.Context, publishedID int64) (int64, error) {
	counter.mu.Lock()
	defer counter.mu.Unlock()

	if counter.failing {
		return 0, assert.AnError
	}
	counter.buffered[publishedID]++
	return counter.buffered[publishedID], nil
}

func (counter *fakeViewCounter) Drain(_ context.Context) (map[int64]int64, error) {
	counter.mu.Lock()
	defer counter.mu.Unlock()

	if counter.failing {
		return nil, assert.AnError
	}
	drained := counter.buffered
	counter.buffered = make(map[int64]int64)
	return drained, nil
}

func newTestService(t *testing.T) (*content.Service, *fakeStore, *fakeViewCounter) {
	t.Helper()

	store := newFakeStore()
	counter := newFakeViewCounter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return content.NewService(store, publishedRepo{store}, counter, logger), store, counter
}

func submitPending(t *testing.T, service *content.Service, author, title string) *content.Submission {
	t.Helper()

	submission, err := service.Submit(context.Background(), content.SubmitInput{
		AuthorUID:  author,
		Title:      title,
		Body:       "Body of " + title,
		CategoryID: 1,
	})
	require.NoError(t, err)
	return submission
}

func TestSubmit_StartsPending(t *testing.T) {
	service, _, _ := newTestService(t)

	submission := submitPending(t, service, "author-1", "Hello Atrium")

	assert.Equal(t, content.StatusPending, submission.Status)
	assert.NotZero(t, submission.ID)
	assert.Nil(t, submission.ReviewedAt)
}

func TestGetSubmission_ScopedToAuthor(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	submission := submitPending(t, service, "author-1", "Mine Only")

	found, err := service.GetSubmission(ctx, submission.ID, "author-1")
	require.NoError(t, err)
	assert.Equal(t, submission.ID, found.ID)

	// Another author must not learn the submission exists.
	_, err = service.GetSubmission(ctx, submission.ID, "author-2")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestApprove_BuildsProjection(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	submission := submitPending(t, service, "author-1", "Governance Update: Season 3!")

	published, err := service.Approve(ctx, submission.ID)
	require.NoError(t, err)

	assert.Equal(t, submission.ID, published.SubmissionID)
	assert.Equal(t, submission.Title, published.Title)
	assert.Equal(t, submission.Body, published.Body)
	assert.Equal(t, submission.CategoryID, published.CategoryID)
	assert.Equal(t, "author-1", published.AuthorUID)
	assert.Zero(t, published.Views)
	assert.Zero(t, published.Likes)

	assert.True(t, strings.HasPrefix(published.Slug, "governance-update-season-3-"))
	assert.True(t, strings.HasSuffix(published.Slug, "-1"))

	posts, total, err := service.Feed(ctx, content.FeedFilter{}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, posts, 1)
}

func TestApprove_AlreadyReviewed(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	submission := submitPending(t, service, "author-1", "First")

	_, err := service.Approve(ctx, submission.ID)
	require.NoError(t, err)

	_, err = service.Approve(ctx, submission.ID)
	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 409, appError.HTTPStatus)
}

func TestReject_GuardedByPending(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	submission := submitPending(t, service, "author-1", "Spam")

	require.NoError(t, service.Reject(ctx, submission.ID, "off topic"))

	stored, err := store.FindByID(ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusRejected, stored.Status)
	require.NotNil(t, stored.ReviewNote)
	assert.Equal(t, "off topic", *stored.ReviewNote)

	// A rejected submission cannot be approved afterwards.
	_, err = service.Approve(ctx, submission.ID)
	require.Error(t, err)

	// And cannot be rejected twice.
	err = service.Reject(ctx, submission.ID, "again")
	require.Error(t, err)
}

func TestListPending_OnlyPending(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	first := submitPending(t, service, "author-1", "One")
	submitPending(t, service, "author-2", "Two")

	_, err := service.Approve(ctx, first.ID)
	require.NoError(t, err)

	pending, total, err := service.ListPending(ctx, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, "Two", pending[0].Title)
}

func TestGetBySlug_BuffersViews(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	submission := submitPending(t, service, "author-1", "Hot Post")
	published, err := service.Approve(ctx, submission.ID)
	require.NoError(t, err)

	first, err := service.GetBySlug(ctx, published.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Views)

	second, err := service.GetBySlug(ctx, published.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Views)

	// Nothing has been flushed to the projection yet.
	stored, err := store.FindPublishedByID(ctx, published.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Views)
}

func TestGetBySlug_CounterFailureDoesNotBreakReads(t *testing.T) {
	service, _, counter := newTestService(t)
	ctx := context.Background()

	submission := submitPending(t, service, "author-1", "Resilient")
	published, err := service.Approve(ctx, submission.ID)
	require.NoError(t, err)

	counter.failing = true

	found, err := service.GetBySlug(ctx, published.Slug)
	require.NoError(t, err)
	assert.Equal(t, published.Slug, found.Slug)
	assert.Zero(t, found.Views)
}

func TestLike_OncePerUser(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	submission := submitPending(t, service, "author-1", "Likeable")
	published, err := service.Approve(ctx, submission.ID)
	require.NoError(t, err)

	require.NoError(t, service.Like(ctx, published.ID, "fan-1"))

	err = service.Like(ctx, published.ID, "fan-1")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 409, appError.HTTPStatus)

	// A different user still can.
	require.NoError(t, service.Like(ctx, published.ID, "fan-2"))

	stored, err := store.FindPublishedByID(ctx, published.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Likes)
}

func TestLike_UnknownPost(t *testing.T) {
	service, _, _ := newTestService(t)

	err := service.Like(context.Background(), 999, "fan-1")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestViewFlusher_DrainsIntoProjection(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	submission := submitPending(t, service, "author-1", "Flushed")
	published, err := service.Approve(ctx, submission.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := service.GetBySlug(ctx, published.Slug)
		require.NoError(t, err)
	}

	service.StartViewFlusher(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return store.appliedViews(published.ID) == 3
	}, 2*time.Second, 10*time.Millisecond)
}
