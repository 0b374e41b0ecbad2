// Copyright (c) 2026 Atrium. All rights reserved.

package content

import "context"

// SubmissionRepository defines the data access contract for the moderation queue.
type SubmissionRepository interface {
	// Create persists a new pending submission.
	Create(ctx context.Context, submission *Submission) error

	// FindByID returns the submission with the given id.
	//
	// Returns [apperr.NotFound] if it does not exist.
	FindByID(ctx context.Context, id int64) (*Submission, error)

	// ListByAuthor returns the author's submissions, newest first.
	ListByAuthor(ctx context.Context, authorUID string, limit, offset int) ([]*Submission, int, error)

	// ListByStatus returns submissions in the given state, oldest first so
	// moderators work the queue in arrival order.
	ListByStatus(ctx context.Context, status SubmissionStatus, limit, offset int) ([]*Submission, int, error)

	// Approve marks the submission approved and inserts the published
	// projection in one transaction, guarded by the pending status.
	//
	// Returns [apperr.Conflict] if the submission is not pending anymore.
	Approve(ctx context.Context, submissionID int64, published *Published) error

	// Reject marks the submission rejected with a review note, guarded by
	// the pending status.
	//
	// Returns [apperr.Conflict] if the submission is not pending anymore.
	Reject(ctx context.Context, submissionID int64, note string) error
}

// PublishedRepository defines the data access contract for the public feed.
type PublishedRepository interface {
	// List returns published posts, newest first, with the total count.
	List(ctx context.Context, filter FeedFilter, limit, offset int) ([]*Published, int, error)

	// FindBySlug returns the published post with the given slug.
	//
	// Returns [apperr.NotFound] if it does not exist.
	FindBySlug(ctx context.Context, slug string) (*Published, error)

	// FindByID returns the published post with the given id.
	FindByID(ctx context.Context, id int64) (*Published, error)

	// Like records a like by the user. Returns false when the user already
	// liked the post; the likes counter moves only on first insertion.
	Like(ctx context.Context, publishedID int64, userUID string) (bool, error)

	// AddViews adds a drained view-counter delta to the stored total.
	AddViews(ctx context.Context, publishedID int64, delta int64) error
}

// ViewCounter buffers view increments away from the write path.
//
// # Why buffered?
//
// Feed detail reads are the hottest endpoint; a synchronous UPDATE per view
// would serialize them on row locks. Views are counted in Redis and drained
// into Postgres by a background flusher, trading a few seconds of staleness
// for throughput.
type ViewCounter interface {
	// Increment adds one view and returns the buffered count for the post.
	Increment(ctx context.Context, publishedID int64) (int64, error)

	// Drain atomically consumes all buffered counts, keyed by published id.
	Drain(ctx context.Context) (map[int64]int64, error)
}
