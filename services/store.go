package services

import (
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"
)

// OrderStore is the persistence the lifecycle manager depends on. The two
// mutating methods carry the engine's atomicity contract: a plain
// read-then-write is not an acceptable implementation for either.
type OrderStore interface {
	OrderQuerier

	CreateOrder(o *models.Order) error
	OrderByID(id uint) (*models.Order, error)
	OrdersByUser(userID uint, asOwner bool) ([]models.Order, error)
	PendingCreatedBefore(cutoff time.Time) ([]models.Order, error)

	// ConfirmPaid performs the authoritative conflict re-check and the
	// Pending->Paid write as one atomic commit. Of N concurrent calls for
	// overlapping windows exactly one succeeds; the rest get a
	// *ConflictError. Confirming an order that is already Paid with the
	// same transaction id returns the order unchanged (idempotent);
	// any other status yields a *StateError.
	ConfirmPaid(orderID uint, method, transactionID string, paidAt time.Time) (*models.Order, error)

	// TransitionOrder loads the order under a write lock, rejects with a
	// *StateError unless its status is one of allowedFrom, applies the
	// mutation and persists it, all in one transaction. apply may return
	// an error to abort.
	TransitionOrder(orderID uint, allowedFrom []int, apply func(o *models.Order) error) (*models.Order, error)
}

// SpaceStore is the persistence the locator and the space workflow need.
type SpaceStore interface {
	SpaceIndex

	SpaceByID(id uint) (*models.ParkingSpace, error)
}

// CommentStore persists ratings and keeps the per-space aggregate
// consistent. Implementations recompute the aggregate from all visible
// comments (via Aggregate) inside the same transaction as the triggering
// write, never incrementally.
type CommentStore interface {
	// CreateComment inserts the comment and flips the order's IsReviewed
	// flag atomically; it fails with a *StateError if the order is not
	// Completed or was reviewed concurrently.
	CreateComment(c *models.Comment) error
	CommentByID(id uint) (*models.Comment, error)
	VisibleComments(spaceID uint) ([]models.Comment, error)
	SetCommentStatus(commentID uint, status string) (*models.Comment, error)
	RecomputeAggregate(spaceID uint) (avg float64, count int, err error)
}

// Store is the full persistence surface of the booking engine.
type Store interface {
	OrderStore
	SpaceStore
	CommentStore
}
