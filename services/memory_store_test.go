package services

import (
	"sync"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"

	"golang.org/x/exp/slices"
)

// memoryStore is a mutex-guarded in-memory Store. The single lock makes
// ConfirmPaid and TransitionOrder atomic the same way the SQL store's
// transactions do, which lets the race tests exercise the engine
// contract without a database.
type memoryStore struct {
	mu       sync.Mutex
	lastID   uint
	orders   map[uint]*models.Order
	spaces   map[uint]*models.ParkingSpace
	comments map[uint]*models.Comment

	// confirmErrs is popped once per ConfirmPaid call to simulate
	// transient storage failures.
	confirmErrs []error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:   make(map[uint]*models.Order),
		spaces:   make(map[uint]*models.ParkingSpace),
		comments: make(map[uint]*models.Comment),
	}
}

func (s *memoryStore) nextID() uint {
	s.lastID++
	return s.lastID
}

func (s *memoryStore) addSpace(space models.ParkingSpace) *models.ParkingSpace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if space.ID == 0 {
		space.ID = s.nextID()
	} else if space.ID > s.lastID {
		s.lastID = space.ID
	}
	s.spaces[space.ID] = &space
	return &space
}

func (s *memoryStore) orderCopy(o *models.Order) *models.Order {
	cp := *o
	return &cp
}

func (s *memoryStore) ActiveOrders(spaceID uint) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.SpaceID == spaceID && o.Active() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memoryStore) CreateOrder(o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.nextID()
	o.CreatedAt = time.Now()
	s.orders[o.ID] = s.orderCopy(o)
	return nil
}

func (s *memoryStore) OrderByID(id uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.orderCopy(o), nil
}

func (s *memoryStore) OrdersByUser(userID uint, asOwner bool) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if (asOwner && o.OwnerID == userID) || (!asOwner && o.RenterID == userID) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memoryStore) PendingCreatedBefore(cutoff time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memoryStore) ConfirmPaid(orderID uint, method, transactionID string, paidAt time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.confirmErrs) > 0 {
		err := s.confirmErrs[0]
		s.confirmErrs = s.confirmErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status == models.OrderStatusPaid && o.TransactionID == transactionID {
		return s.orderCopy(o), nil
	}
	if o.Status != models.OrderStatusPending {
		return nil, &StateError{Event: "pay", Status: o.Status}
	}
	for _, other := range s.orders {
		if other.ID != o.ID && other.SpaceID == o.SpaceID && other.Active() && other.Overlaps(o.StartTime, o.EndTime) {
			return nil, &ConflictError{SpaceID: o.SpaceID, Start: o.StartTime, End: o.EndTime}
		}
	}
	o.Status = models.OrderStatusPaid
	o.PaymentMethod = method
	o.TransactionID = transactionID
	o.PaidAt = &paidAt
	if space, ok := s.spaces[o.SpaceID]; ok {
		space.OrderCount++
		space.TotalRevenue += o.TotalPrice
	}
	return s.orderCopy(o), nil
}

func (s *memoryStore) TransitionOrder(orderID uint, allowedFrom []int, apply func(o *models.Order) error) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if !slices.Contains(allowedFrom, o.Status) {
		return nil, &StateError{Event: "transition", Status: o.Status}
	}
	cp := *o
	if err := apply(&cp); err != nil {
		return nil, err
	}
	s.orders[orderID] = &cp
	return s.orderCopy(&cp), nil
}

func (s *memoryStore) SpaceByID(id uint) (*models.ParkingSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	space, ok := s.spaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *space
	return &cp, nil
}

func (s *memoryStore) BookableSpacesWithin(minLat, maxLat, minLng, maxLng float64) ([]models.ParkingSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ParkingSpace
	for _, space := range s.spaces {
		if !space.Bookable() {
			continue
		}
		if space.Latitude < minLat || space.Latitude > maxLat {
			continue
		}
		if space.Longitude < minLng || space.Longitude > maxLng {
			continue
		}
		out = append(out, *space)
	}
	return out, nil
}

func (s *memoryStore) CreateComment(c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[c.OrderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != models.OrderStatusCompleted || o.IsReviewed {
		return &StateError{Event: "review", Status: o.Status}
	}
	o.IsReviewed = true

	c.ID = s.nextID()
	c.CreatedAt = time.Now()
	cp := *c
	s.comments[c.ID] = &cp
	s.recomputeLocked(c.SpaceID)
	return nil
}

func (s *memoryStore) CommentByID(id uint) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memoryStore) VisibleComments(spaceID uint) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Comment
	for _, c := range s.comments {
		if c.SpaceID == spaceID && c.Status == models.CommentStatusVisible {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memoryStore) SetCommentStatus(commentID uint, status string) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return nil, ErrNotFound
	}
	c.Status = status
	s.recomputeLocked(c.SpaceID)
	cp := *c
	return &cp, nil
}

func (s *memoryStore) RecomputeAggregate(spaceID uint) (float64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	avg, count := s.recomputeLocked(spaceID)
	return avg, count, nil
}

func (s *memoryStore) recomputeLocked(spaceID uint) (float64, int) {
	var ratings []int
	for _, c := range s.comments {
		if c.SpaceID == spaceID && c.Status == models.CommentStatusVisible {
			ratings = append(ratings, c.Rating)
		}
	}
	avg, count := Aggregate(ratings)
	if space, ok := s.spaces[spaceID]; ok {
		space.AvgRating = avg
		space.ReviewCount = count
	}
	return avg, count
}
