package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aman-zulfiqar/pair-detector/internal/models"
)

var ErrNotFound = errors.New("candidate not found")

// CandidateSink receives every candidate recorded in the detected list.
type CandidateSink interface {
	Record(ctx context.Context, c *models.TokenCandidate) error
}

// CandidateFeed is the live fan-out of recorded candidates.
type CandidateFeed interface {
	CandidateSink

	// RecentCandidates returns up to limit candidates, newest first
	RecentCandidates(ctx context.Context, limit int64) ([]*models.TokenCandidate, error)

	// LatestCandidate returns the newest candidate or ErrNotFound
	LatestCandidate(ctx context.Context) (*models.TokenCandidate, error)

	// Subscribe blocks, calling handler for each published candidate
	Subscribe(ctx context.Context, handler func(*models.TokenCandidate)) error

	Ping(ctx context.Context) error
	io.Closer
}

// CandidateStore is the persistent audit log of recorded candidates.
type CandidateStore interface {
	CandidateSink

	Ping(ctx context.Context) error
	io.Closer
}
