// Copyright (c) 2026 Atrium. All rights reserved.

package content

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/dberr"
)

// # Submission Repository

// PostgresSubmissionRepository implements [SubmissionRepository] using pgx.
type PostgresSubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates the PostgreSQL implementation of [SubmissionRepository].
func NewSubmissionRepository(pool *pgxpool.Pool) *PostgresSubmissionRepository {
	return &PostgresSubmissionRepository{pool: pool}
}

const submissionColumns = `
	id, authoruid, title, body, categoryid, status, reviewnote, createdat, reviewedat`

func scanSubmission(row interface{ Scan(dest ...any) error }) (*Submission, error) {
	submission := &Submission{}
	err := row.Scan(
		&submission.ID,
		&submission.AuthorUID,
		&submission.Title,
		&submission.Body,
		&submission.CategoryID,
		&submission.Status,
		&submission.ReviewNote,
		&submission.CreatedAt,
		&submission.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return submission, nil
}

/*
Create persists a new pending submission into the moderation queue.

Parameters:
  - context: context.Context
  - submission: *Submission

Returns:
  - error: Foreign key violations (unknown category) or connectivity errors
*/
func (repository *PostgresSubmissionRepository) Create(context context.Context, submission *Submission) error {
	const query = `
		INSERT INTO content.submission (authoruid, title, body, categoryid, status, createdat)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	submission.CreatedAt = time.Now()

	err := repository.pool.QueryRow(context, query,
		submission.AuthorUID,
		submission.Title,
		submission.Body,
		submission.CategoryID,
		submission.Status,
		submission.CreatedAt,
	).Scan(&submission.ID)
	if err != nil {
		return dberr.Wrap(err, "create_submission")
	}
	return nil
}

// FindByID retrieves a single submission by its identifier.
func (repository *PostgresSubmissionRepository) FindByID(context context.Context, id int64) (*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM content.submission WHERE id = $1`

	submission, err := scanSubmission(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "find_submission")
	}
	return submission, nil
}

/*
ListByAuthor retrieves the author's submissions, newest first, with total.

Parameters:
  - context: context.Context
  - authorUID: string
  - limit, offset: int

Returns:
  - []*Submission: One page of submissions
  - int: Total matching rows for pagination
  - error: Execution or scanning errors
*/
func (repository *PostgresSubmissionRepository) ListByAuthor(context context.Context, authorUID string, limit, offset int) ([]*Submission, int, error) {
	var total int
	err := repository.pool.QueryRow(context,
		`SELECT count(*) FROM content.submission WHERE authoruid = $1`, authorUID,
	).Scan(&total)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "count_submissions_by_author")
	}

	query := `SELECT ` + submissionColumns + `
		FROM content.submission
		WHERE authoruid = $1
		ORDER BY createdat DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, authorUID, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_submissions_by_author")
	}
	defer rows.Close()

	var submissions []*Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_submission")
		}
		submissions = append(submissions, submission)
	}

	return submissions, total, nil
}

/*
ListByStatus retrieves submissions in a moderation state, oldest first.

Description: Moderators work the queue in arrival order, so pending listings
sort ascending by creation time.
*/
func (repository *PostgresSubmissionRepository) ListByStatus(context context.Context, status SubmissionStatus, limit, offset int) ([]*Submission, int, error) {
	var total int
	err := repository.pool.QueryRow(context,
		`SELECT count(*) FROM content.submission WHERE status = $1`, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "count_submissions_by_status")
	}

	query := `SELECT ` + submissionColumns + `
		FROM content.submission
		WHERE status = $1
		ORDER BY createdat ASC, id ASC
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, status, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_submissions_by_status")
	}
	defer rows.Close()

	var submissions []*Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_submission")
		}
		submissions = append(submissions, submission)
	}

	return submissions, total, nil
}

/*
Approve publishes a pending submission in one transaction.

Description: The status UPDATE carries a WHERE status = 'pending' guard, so
two racing moderators cannot both publish; the loser sees zero rows and gets
a Conflict. The projection INSERT shares the transaction with the flip.

Parameters:
  - context: context.Context
  - submissionID: int64
  - published: *Published (projection to insert; ID is populated)

Returns:
  - error: apperr.Conflict when the submission is no longer pending
*/
func (repository *PostgresSubmissionRepository) Approve(context context.Context, submissionID int64, published *Published) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_submission_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	now := time.Now()

	const updateQuery = `
		UPDATE content.submission
		SET status = 'approved', reviewedat = $2
		WHERE id = $1 AND status = 'pending'`

	tag, err := transaction.Exec(context, updateQuery, submissionID, now)
	if err != nil {
		return dberr.Wrap(err, "approve_submission")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("Submission has already been reviewed")
	}

	const insertQuery = `
		INSERT INTO content.published (
			submissionid, authoruid, title, body, categoryid, slug, views, likes, publishedat
		) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7)
		RETURNING id`

	err = transaction.QueryRow(context, insertQuery,
		published.SubmissionID,
		published.AuthorUID,
		published.Title,
		published.Body,
		published.CategoryID,
		published.Slug,
		published.PublishedAt,
	).Scan(&published.ID)
	if err != nil {
		return dberr.Wrap(err, "insert_published")
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_submission_commit_failed: %w", err)
	}
	return nil
}

// Reject declines a pending submission, guarded the same way as [Approve].
func (repository *PostgresSubmissionRepository) Reject(context context.Context, submissionID int64, note string) error {
	const query = `
		UPDATE content.submission
		SET status = 'rejected', reviewnote = $2, reviewedat = $3
		WHERE id = $1 AND status = 'pending'`

	tag, err := repository.pool.Exec(context, query, submissionID, note, time.Now())
	if err != nil {
		return dberr.Wrap(err, "reject_submission")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("Submission has already been reviewed")
	}
	return nil
}

// # Published Repository

// PostgresPublishedRepository implements [PublishedRepository] using pgx.
type PostgresPublishedRepository struct {
	pool *pgxpool.Pool
}

// NewPublishedRepository creates the PostgreSQL implementation of [PublishedRepository].
func NewPublishedRepository(pool *pgxpool.Pool) *PostgresPublishedRepository {
	return &PostgresPublishedRepository{pool: pool}
}

const publishedColumns = `
	id, submissionid, authoruid, title, body, categoryid, slug, views, likes, publishedat`

func scanPublished(row interface{ Scan(dest ...any) error }) (*Published, error) {
	published := &Published{}
	err := row.Scan(
		&published.ID,
		&published.SubmissionID,
		&published.AuthorUID,
		&published.Title,
		&published.Body,
		&published.CategoryID,
		&published.Slug,
		&published.Views,
		&published.Likes,
		&published.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	return published, nil
}

/*
List retrieves one page of the public feed, newest first.

Parameters:
  - context: context.Context
  - filter: FeedFilter (CategoryID > 0 narrows the feed)
  - limit, offset: int

Returns:
  - []*Published: One feed page
  - int: Total matching rows
  - error: Execution or scanning errors
*/
func (repository *PostgresPublishedRepository) List(context context.Context, filter FeedFilter, limit, offset int) ([]*Published, int, error) {
	where := ``
	args := []any{}
	if filter.CategoryID > 0 {
		where = `WHERE categoryid = $1`
		args = append(args, filter.CategoryID)
	}

	var total int
	err := repository.pool.QueryRow(context,
		`SELECT count(*) FROM content.published `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "count_published")
	}

	query := fmt.Sprintf(`SELECT %s
		FROM content.published
		%s
		ORDER BY publishedat DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		publishedColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := repository.pool.Query(context, query, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_published")
	}
	defer rows.Close()

	var posts []*Published
	for rows.Next() {
		published, err := scanPublished(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_published")
		}
		posts = append(posts, published)
	}

	return posts, total, nil
}

// FindBySlug retrieves a single published post by its slug.
func (repository *PostgresPublishedRepository) FindBySlug(context context.Context, slug string) (*Published, error) {
	query := `SELECT ` + publishedColumns + ` FROM content.published WHERE slug = $1`

	published, err := scanPublished(repository.pool.QueryRow(context, query, slug))
	if err != nil {
		return nil, dberr.Wrap(err, "find_published_by_slug")
	}
	return published, nil
}

// FindByID retrieves a single published post by its identifier.
func (repository *PostgresPublishedRepository) FindByID(context context.Context, id int64) (*Published, error) {
	query := `SELECT ` + publishedColumns + ` FROM content.published WHERE id = $1`

	published, err := scanPublished(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "find_published_by_id")
	}
	return published, nil
}

/*
Like records a one-per-user like.

Description: The unique index on (publishedid, useruid) makes the insert
idempotent via ON CONFLICT DO NOTHING; the likes counter moves only when the
row actually landed.

Returns:
  - bool: true when this was the user's first like
  - error: Execution errors
*/
func (repository *PostgresPublishedRepository) Like(context context.Context, publishedID int64, userUID string) (bool, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return false, fmt.Errorf("postgres_like_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	const insertQuery = `
		INSERT INTO content.post_like (publishedid, useruid, createdat)
		VALUES ($1, $2, now())
		ON CONFLICT (publishedid, useruid) DO NOTHING`

	tag, err := transaction.Exec(context, insertQuery, publishedID, userUID)
	if err != nil {
		return false, dberr.Wrap(err, "insert_like")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	const counterQuery = `UPDATE content.published SET likes = likes + 1 WHERE id = $1`
	if _, err := transaction.Exec(context, counterQuery, publishedID); err != nil {
		return false, dberr.Wrap(err, "bump_like_counter")
	}

	if err := transaction.Commit(context); err != nil {
		return false, fmt.Errorf("postgres_like_commit_failed: %w", err)
	}
	return true, nil
}

// AddViews folds a drained view-buffer delta into the stored total.
func (repository *PostgresPublishedRepository) AddViews(context context.Context, publishedID int64, delta int64) error {
	const query = `UPDATE content.published SET views = views + $2 WHERE id = $1`

	if _, err := repository.pool.Exec(context, query, publishedID, delta); err != nil {
		return dberr.Wrap(err, "add_views")
	}
	return nil
}
