// Copyright (c) 2026 Atrium. All rights reserved.

// Package content implements the community publishing pipeline.
//
// # Architecture
//
// Members submit posts that enter a moderation queue. An administrator
// either rejects a submission with a review note or approves it, which
// copies the content into the published projection backing the public feed.
// The projection is denormalized on purpose: feed reads never join against
// the moderation queue, and later edits to the queue cannot retroactively
// change what was published.
package content

import "time"

// SubmissionStatus enumerates the moderation states of a submission.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// Submission is a member-authored post awaiting or past moderation.
//
// # Rules
//   - Every submission starts as pending.
//   - Approval is irreversible through the normal flow; the published row
//     outlives any later state the queue may reach.
type Submission struct {
	ID         int64            `json:"id"`
	AuthorUID  string           `json:"author_uid"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	CategoryID int              `json:"category_id"`
	Status     SubmissionStatus `json:"status"`
	ReviewNote *string          `json:"review_note,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ReviewedAt *time.Time       `json:"reviewed_at,omitempty"`
}

// Published is the public projection of an approved submission.
type Published struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	AuthorUID    string    `json:"author_uid"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	CategoryID   int       `json:"category_id"`
	Slug         string    `json:"slug"`
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
	PublishedAt  time.Time `json:"published_at"`
}

// FeedFilter holds the parameters for a paginated feed query.
type FeedFilter struct {
	// CategoryID filters by category when > 0.
	CategoryID int
}

// # Field Identifiers

const (
	FieldTitle      = "title"
	FieldBody       = "body"
	FieldCategoryID = "category_id"
	FieldReviewNote = "review_note"
)

// # Limits

const (
	// MaxTitleLength bounds submission titles.
	MaxTitleLength = 200

	// MaxBodyLength bounds submission bodies.
	MaxBodyLength = 50000

	// ViewFlushInterval is how often buffered view counts are drained from
	// Redis into the published projection.
	ViewFlushInterval = 30 * time.Second
)
