// Copyright (c) 2026 Atrium. All rights reserved.

package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/pkg/slug"
)

// Service implements the publishing pipeline use cases.
type Service struct {
	submissions SubmissionRepository
	published   PublishedRepository
	views       ViewCounter
	logger      *slog.Logger
}

// NewService constructs a new content [Service] with its dependencies.
func NewService(
	submissions SubmissionRepository,
	published PublishedRepository,
	views ViewCounter,
	logger *slog.Logger,
) *Service {
	return &Service{
		submissions: submissions,
		published:   published,
		views:       views,
		logger:      logger,
	}
}

// SubmitInput holds the data for a new submission.
type SubmitInput struct {
	AuthorUID  string
	Title      string
	Body       string
	CategoryID int
}

// Submit enqueues a new post for moderation. Every submission starts pending.
func (service *Service) Submit(ctx context.Context, input SubmitInput) (*Submission, error) {
	submission := &Submission{
		AuthorUID:  input.AuthorUID,
		Title:      input.Title,
		Body:       input.Body,
		CategoryID: input.CategoryID,
		Status:     StatusPending,
	}

	if err := service.submissions.Create(ctx, submission); err != nil {
		return nil, err
	}

	service.logger.Info("submission_created",
		slog.Int64("submission_id", submission.ID),
		slog.String("author_uid", input.AuthorUID),
	)

	return submission, nil
}

// ListMine returns the author's own submissions, newest first.
func (service *Service) ListMine(ctx context.Context, authorUID string, limit, offset int) ([]*Submission, int, error) {
	return service.submissions.ListByAuthor(ctx, authorUID, limit, offset)
}

// ListPending returns the moderation queue in arrival order.
func (service *Service) ListPending(ctx context.Context, limit, offset int) ([]*Submission, int, error) {
	return service.submissions.ListByStatus(ctx, StatusPending, limit, offset)
}

// GetSubmission returns one submission, restricted to its author.
func (service *Service) GetSubmission(ctx context.Context, id int64, authorUID string) (*Submission, error) {
	submission, err := service.submissions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.AuthorUID != authorUID {
		// Hide the existence of other authors' submissions.
		return nil, apperr.NotFound("Submission")
	}
	return submission, nil
}

// Approve publishes a pending submission.
//
// # Flow
//  1. Load the submission; only pending ones can move.
//  2. Build the published projection (slug from title, counters at zero).
//  3. Flip the status and insert the projection in one guarded transaction.
//
// Returns [apperr.Conflict] when the submission is not pending, including
// when a concurrent moderator won the race.
func (service *Service) Approve(ctx context.Context, submissionID int64) (*Published, error) {
	submission, err := service.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.Status != StatusPending {
		return nil, apperr.Conflict("Submission has already been reviewed")
	}

	published := &Published{
		SubmissionID: submission.ID,
		AuthorUID:    submission.AuthorUID,
		Title:        submission.Title,
		Body:         submission.Body,
		CategoryID:   submission.CategoryID,
		// The id suffix keeps slugs unique without a retry loop.
		Slug:        fmt.Sprintf("%s-%d", slug.From(submission.Title), submission.ID),
		PublishedAt: time.Now(),
	}

	if err := service.submissions.Approve(ctx, submissionID, published); err != nil {
		return nil, err
	}

	service.logger.Info("submission_approved",
		slog.Int64("submission_id", submissionID),
		slog.String("slug", published.Slug),
	)

	return published, nil
}

// Reject declines a pending submission with a review note for the author.
//
// Returns [apperr.Conflict] when the submission is not pending.
func (service *Service) Reject(ctx context.Context, submissionID int64, note string) error {
	submission, err := service.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if submission.Status != StatusPending {
		return apperr.Conflict("Submission has already been reviewed")
	}

	if err := service.submissions.Reject(ctx, submissionID, note); err != nil {
		return err
	}

	service.logger.Info("submission_rejected", slog.Int64("submission_id", submissionID))
	return nil
}

// Feed returns published posts, newest first, optionally filtered by category.
func (service *Service) Feed(ctx context.Context, filter FeedFilter, limit, offset int) ([]*Published, int, error) {
	return service.published.List(ctx, filter, limit, offset)
}

// GetBySlug returns one published post and counts the view.
//
// The view goes into the Redis buffer; the returned Views field includes the
// buffered delta so readers see their own view reflected immediately.
func (service *Service) GetBySlug(ctx context.Context, postSlug string) (*Published, error) {
	published, err := service.published.FindBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}

	buffered, err := service.views.Increment(ctx, published.ID)
	if err != nil {
		// A broken counter must not break reads.
		service.logger.Warn("view_counter_increment_failed",
			slog.Int64("published_id", published.ID), slog.Any("error", err))
		return published, nil
	}

	published.Views += buffered
	return published, nil
}

// Like records a like for the user. Liking twice is a no-op reported as
// [apperr.Conflict] so clients can reflect the already-liked state.
func (service *Service) Like(ctx context.Context, publishedID int64, userUID string) error {
	if _, err := service.published.FindByID(ctx, publishedID); err != nil {
		return err
	}

	inserted, err := service.published.Like(ctx, publishedID, userUID)
	if err != nil {
		return err
	}
	if !inserted {
		return apperr.Conflict("Post already liked")
	}
	return nil
}

// StartViewFlusher launches the background drain of buffered view counts
// into the published projection. The goroutine exits when the context is
// cancelled, flushing one final time on the way out.
func (service *Service) StartViewFlusher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				service.flushViews(ctx)
			case <-ctx.Done():
				// Best effort: drain what is left with a detached context.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				service.flushViews(flushCtx)
				cancel()
				return
			}
		}
	}()
}

func (service *Service) flushViews(ctx context.Context) {
	counts, err := service.views.Drain(ctx)
	if err != nil {
		service.logger.Warn("view_flush_drain_failed", slog.Any("error", err))
		return
	}

	for publishedID, delta := range counts {
		if err := service.published.AddViews(ctx, publishedID, delta); err != nil {
			service.logger.Warn("view_flush_apply_failed",
				slog.Int64("published_id", publishedID), slog.Any("error", err))
		}
	}
}
