package services

import (
	"math"

	"github.com/song-xingzhou/MVEN-Parking/models"
)

// SubmitRatingInput is a renter's rating of a completed order.
type SubmitRatingInput struct {
	Rating        int
	LocationScore *int
	AccuracyScore *int
	SafetyScore   *int
	ValueScore    *int
	Content       string
	IsAnonymous   bool
}

// Rating files reviews and keeps each space's {average, count} aggregate
// consistent with its visible comments.
type Rating struct {
	store Store
}

func NewRating(store Store) *Rating {
	return &Rating{store: store}
}

// SubmitRating creates the one comment an order may carry. Only the
// renter of a Completed, not-yet-reviewed order may file it; the comment
// insert, the IsReviewed flip and the aggregate recompute commit
// together.
func (r *Rating) SubmitRating(orderID uint, actor Actor, in SubmitRatingInput) (*models.Comment, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	for _, s := range []*int{in.LocationScore, in.AccuracyScore, in.SafetyScore, in.ValueScore} {
		if s != nil && (*s < 1 || *s > 5) {
			return nil, &ValidationError{Field: "detailedScores", Reason: "must be between 1 and 5"}
		}
	}
	if len(in.Content) > 500 {
		return nil, &ValidationError{Field: "content", Reason: "must be at most 500 characters"}
	}

	order, err := r.store.OrderByID(orderID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != order.RenterID {
		return nil, &PermissionError{UserID: actor.UserID, Action: "review this order"}
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, &StateError{Event: "review", Status: order.Status}
	}
	if order.IsReviewed {
		return nil, &StateError{Event: "review twice", Status: order.Status}
	}

	comment := &models.Comment{
		OrderID:       order.ID,
		RenterID:      order.RenterID,
		SpaceID:       order.SpaceID,
		OwnerID:       order.OwnerID,
		Rating:        in.Rating,
		LocationScore: in.LocationScore,
		AccuracyScore: in.AccuracyScore,
		SafetyScore:   in.SafetyScore,
		ValueScore:    in.ValueScore,
		Content:       in.Content,
		IsAnonymous:   in.IsAnonymous,
		Status:        models.CommentStatusVisible,
	}

	if err := r.store.CreateComment(comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ModerateComment hides, restores or soft-deletes a comment and
// recomputes the space aggregate in the same transaction.
func (r *Rating) ModerateComment(commentID uint, status string, actor Actor) (*models.Comment, error) {
	if !actor.Can(PermModerateComment) {
		return nil, &PermissionError{UserID: actor.UserID, Action: "moderate comments"}
	}
	switch status {
	case models.CommentStatusVisible, models.CommentStatusHidden, models.CommentStatusDeleted:
	default:
		return nil, &ValidationError{Field: "status", Reason: "must be visible, hidden or deleted"}
	}
	return r.store.SetCommentStatus(commentID, status)
}

// Recompute rebuilds a space's aggregate from its visible comments. It is
// idempotent and exists for repair jobs; normal writes recompute inline.
func (r *Rating) Recompute(spaceID uint) (avg float64, count int, err error) {
	return r.store.RecomputeAggregate(spaceID)
}

// Aggregate is the one definition of the rating aggregate: the mean of
// the given ratings rounded to one decimal, and their count. Stores call
// it inside the transaction that changed the visible set.
func Aggregate(ratings []int) (avg float64, count int) {
	count = len(ratings)
	if count == 0 {
		return 0, 0
	}
	sum := 0
	for _, v := range ratings {
		sum += v
	}
	avg = math.Round(float64(sum)/float64(count)*10) / 10
	return avg, count
}
