package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"
	"github.com/song-xingzhou/MVEN-Parking/services"

	"golang.org/x/exp/slices"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParkingStore is the Postgres-backed implementation of services.Store.
// The confirmation and transition paths take row locks so the conflict
// check and the status write commit as one unit; the pure read methods
// need no locking.
type ParkingStore struct {
	db *gorm.DB
}

func NewParkingStore(db *gorm.DB) *ParkingStore {
	return &ParkingStore{db: db}
}

var activeStatuses = []int{models.OrderStatusPaid, models.OrderStatusInProgress}

func (s *ParkingStore) ActiveOrders(spaceID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.
		Where("space_id = ? AND status IN ?", spaceID, activeStatuses).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("active orders for space %d: %w", spaceID, err)
	}
	return orders, nil
}

func (s *ParkingStore) CreateOrder(o *models.Order) error {
	if err := s.db.Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *ParkingStore) OrderByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.First(&order, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

func (s *ParkingStore) OrdersByUser(userID uint, asOwner bool) ([]models.Order, error) {
	column := "renter_id"
	if asOwner {
		column = "owner_id"
	}
	var orders []models.Order
	err := s.db.
		Where(column+" = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("orders for user %d: %w", userID, err)
	}
	return orders, nil
}

func (s *ParkingStore) PendingCreatedBefore(cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("pending orders before %s: %w", cutoff, err)
	}
	return orders, nil
}

// ConfirmPaid implements the authoritative check-and-commit. The space
// row is locked for the duration of the transaction, which serializes
// concurrent confirmations per space: the first commit wins and every
// later one sees its order as a conflict.
func (s *ParkingStore) ConfirmPaid(orderID uint, method, transactionID string, paidAt time.Time) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return translateNotFound(err)
		}

		// Replay of the same payment callback is a no-op success.
		if order.Status == models.OrderStatusPaid && order.TransactionID == transactionID {
			return nil
		}
		if order.Status != models.OrderStatusPending {
			return &services.StateError{Event: "pay", Status: order.Status}
		}

		var space models.ParkingSpace
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&space, order.SpaceID).Error; err != nil {
			return translateNotFound(err)
		}

		var conflicts int64
		err := tx.Model(&models.Order{}).
			Where("space_id = ? AND status IN ? AND id <> ? AND start_time < ? AND end_time > ?",
				order.SpaceID, activeStatuses, order.ID, order.EndTime, order.StartTime).
			Count(&conflicts).Error
		if err != nil {
			return fmt.Errorf("conflict recheck: %w", err)
		}
		if conflicts > 0 {
			return &services.ConflictError{SpaceID: order.SpaceID, Start: order.StartTime, End: order.EndTime}
		}

		order.Status = models.OrderStatusPaid
		order.PaymentMethod = method
		order.TransactionID = transactionID
		order.PaidAt = &paidAt
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("commit payment: %w", err)
		}

		return tx.Model(&space).Updates(map[string]interface{}{
			"order_count":   gorm.Expr("order_count + 1"),
			"total_revenue": gorm.Expr("total_revenue + ?", order.TotalPrice),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *ParkingStore) TransitionOrder(orderID uint, allowedFrom []int, apply func(o *models.Order) error) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return translateNotFound(err)
		}
		if !slices.Contains(allowedFrom, order.Status) {
			return &services.StateError{Event: "transition", Status: order.Status}
		}
		if err := apply(&order); err != nil {
			return err
		}
		if err := tx.Save(&order).Error; err != nil {
			return fmt.Errorf("save order %d: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *ParkingStore) SpaceByID(id uint) (*models.ParkingSpace, error) {
	var space models.ParkingSpace
	if err := s.db.First(&space, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &space, nil
}

func (s *ParkingStore) BookableSpacesWithin(minLat, maxLat, minLng, maxLng float64) ([]models.ParkingSpace, error) {
	var spaces []models.ParkingSpace
	err := s.db.
		Where("status = ? AND is_approved = ?", models.SpaceStatusAvailable, true).
		Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?", minLat, maxLat, minLng, maxLng).
		Find(&spaces).Error
	if err != nil {
		return nil, fmt.Errorf("spaces in bounding box: %w", err)
	}
	return spaces, nil
}

// CreateComment inserts the comment, flips the order's IsReviewed flag
// and rebuilds the space aggregate in one transaction. The conditional
// update on the order is the guard against two concurrent reviews.
func (s *ParkingStore) CreateComment(c *models.Comment) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, c.OrderID).Error; err != nil {
			return translateNotFound(err)
		}
		if order.Status != models.OrderStatusCompleted || order.IsReviewed {
			return &services.StateError{Event: "review", Status: order.Status}
		}
		if err := tx.Model(&order).Update("is_reviewed", true).Error; err != nil {
			return fmt.Errorf("mark order reviewed: %w", err)
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		_, _, err := recomputeAggregate(tx, c.SpaceID)
		return err
	})
}

func (s *ParkingStore) CommentByID(id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.First(&comment, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &comment, nil
}

func (s *ParkingStore) VisibleComments(spaceID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.
		Where("space_id = ? AND status = ?", spaceID, models.CommentStatusVisible).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("comments for space %d: %w", spaceID, err)
	}
	return comments, nil
}

func (s *ParkingStore) SetCommentStatus(commentID uint, status string) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&comment, commentID).Error; err != nil {
			return translateNotFound(err)
		}
		if comment.Status == status {
			return nil
		}
		comment.Status = status
		if err := tx.Save(&comment).Error; err != nil {
			return fmt.Errorf("save comment %d: %w", commentID, err)
		}
		_, _, err := recomputeAggregate(tx, comment.SpaceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *ParkingStore) RecomputeAggregate(spaceID uint) (float64, int, error) {
	var avg float64
	var count int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		avg, count, err = recomputeAggregate(tx, spaceID)
		return err
	})
	return avg, count, err
}

// recomputeAggregate rebuilds {avg_rating, review_count} from the full
// visible set rather than adjusting counters, so repeated runs converge
// on the same values.
func recomputeAggregate(tx *gorm.DB, spaceID uint) (float64, int, error) {
	var ratings []int
	err := tx.Model(&models.Comment{}).
		Where("space_id = ? AND status = ?", spaceID, models.CommentStatusVisible).
		Pluck("rating", &ratings).Error
	if err != nil {
		return 0, 0, fmt.Errorf("visible ratings for space %d: %w", spaceID, err)
	}

	avg, count := services.Aggregate(ratings)
	err = tx.Model(&models.ParkingSpace{}).
		Where("id = ?", spaceID).
		Updates(map[string]interface{}{"avg_rating": avg, "review_count": count}).Error
	if err != nil {
		return 0, 0, fmt.Errorf("update aggregate for space %d: %w", spaceID, err)
	}
	return avg, count, nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	return err
}
