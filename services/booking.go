package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"
)

// RefundPolicy decides how much of a paid order's total is returned when
// it is cancelled, given how long remains until the booked start. The
// result is clamped to [0, amount].
type RefundPolicy func(timeToStart time.Duration, amount float64) float64

// FullRefundBeforeStart refunds everything when cancellation happens
// strictly before the booked start, nothing afterwards.
func FullRefundBeforeStart(timeToStart time.Duration, amount float64) float64 {
	if timeToStart > 0 {
		return amount
	}
	return 0
}

// CreateOrderInput is the renter's reservation request.
type CreateOrderInput struct {
	SpaceID     uint
	StartTime   time.Time
	EndTime     time.Time
	BillingType string
	PlateNumber string
	VehicleType string
	Remark      string
}

// Booking drives an order through its lifecycle. All state transitions go
// through the store's atomic primitives; the service itself holds no
// mutable state and is safe for concurrent use.
type Booking struct {
	store     Store
	validator *ReservationValidator

	// Discount and Refund are the externally configured policies; both
	// have safe defaults.
	Discount DiscountPolicy
	Refund   RefundPolicy

	now func() time.Time
}

func NewBooking(store Store) *Booking {
	return &Booking{
		store:     store,
		validator: NewReservationValidator(store),
		Discount:  NoDiscount,
		Refund:    FullRefundBeforeStart,
		now:       time.Now,
	}
}

// CreateOrder validates the request, takes the price snapshot and
// persists a Pending order. The conflict check here is advisory only; an
// overlapping order may still reach Pending concurrently and will be
// rejected at payment time.
func (b *Booking) CreateOrder(renterID uint, in CreateOrderInput) (*models.Order, error) {
	now := b.now()
	if !in.StartTime.Before(in.EndTime) {
		return nil, &ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	if in.StartTime.Before(now) {
		return nil, &ValidationError{Field: "startTime", Reason: "must not be in the past"}
	}

	space, err := b.store.SpaceByID(in.SpaceID)
	if err != nil {
		return nil, err
	}
	if !space.Bookable() {
		return nil, &StateError{Event: "book space", Status: models.OrderStatusPending}
	}
	if space.OwnerID == renterID {
		return nil, &PermissionError{UserID: renterID, Action: "book an own space"}
	}

	unitPrice, err := unitPriceFor(space, in.BillingType)
	if err != nil {
		return nil, err
	}

	conflict, err := b.validator.HasConflict(in.SpaceID, in.StartTime, in.EndTime, 0)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, &ConflictError{SpaceID: in.SpaceID, Start: in.StartTime, End: in.EndTime}
	}

	quote, err := Price(in.BillingType, unitPrice, in.StartTime, in.EndTime, b.Discount)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNo:        newOrderNo(now),
		RenterID:       renterID,
		SpaceID:        space.ID,
		OwnerID:        space.OwnerID,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		BillingType:    quote.BillingType,
		UnitPrice:      quote.UnitPrice,
		Quantity:       quote.Quantity,
		OriginalPrice:  quote.Original,
		DiscountAmount: quote.Discount,
		TotalPrice:     quote.Total,
		Status:         models.OrderStatusPending,
		PlateNumber:    in.PlateNumber,
		VehicleType:    in.VehicleType,
		RenterRemark:   in.Remark,
	}

	if err := b.store.CreateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// confirmAttempts bounds retries of the payment commit on transient
// storage failures. The commit is idempotent at the business level, so a
// retry after an ambiguous failure cannot double-charge.
const confirmAttempts = 3

// ConfirmPayment moves a Pending order to Paid. The overlap re-check and
// the status write happen atomically inside the store; this is the
// authoritative guard against double-booking.
func (b *Booking) ConfirmPayment(orderID uint, method, transactionID string) (*models.Order, error) {
	if transactionID == "" {
		return nil, &ValidationError{Field: "transactionID", Reason: "is required"}
	}

	var lastErr error
	for attempt := 0; attempt < confirmAttempts; attempt++ {
		order, err := b.store.ConfirmPaid(orderID, method, transactionID, b.now())
		if err == nil {
			return order, nil
		}
		if isBusinessError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("confirm payment for order %d: %w", orderID, lastErr)
}

// StartUsage records the actual start and moves Paid -> InProgress.
func (b *Booking) StartUsage(orderID uint, actor Actor) (*models.Order, error) {
	now := b.now()
	return b.store.TransitionOrder(orderID, []int{models.OrderStatusPaid}, func(o *models.Order) error {
		if !isParty(actor, o) {
			return &PermissionError{UserID: actor.UserID, Action: "start usage"}
		}
		o.Status = models.OrderStatusInProgress
		o.ActualStartTime = &now
		return nil
	})
}

// CompleteUsage records the actual end and moves InProgress -> Completed.
// IsReviewed stays false until a rating is filed.
func (b *Booking) CompleteUsage(orderID uint, actor Actor) (*models.Order, error) {
	now := b.now()
	return b.store.TransitionOrder(orderID, []int{models.OrderStatusInProgress}, func(o *models.Order) error {
		if !isParty(actor, o) {
			return &PermissionError{UserID: actor.UserID, Action: "complete usage"}
		}
		o.Status = models.OrderStatusCompleted
		o.ActualEndTime = &now
		return nil
	})
}

// CancelOrder cancels a Pending or Paid order. A Pending order was never
// charged, so it carries no refund. For a Paid order the refund comes
// from the configured policy; once the booked start has passed only the
// owner, the system or an admin may cancel.
func (b *Booking) CancelOrder(orderID uint, reason string, actor Actor) (*models.Order, error) {
	now := b.now()
	allowed := []int{models.OrderStatusPending, models.OrderStatusPaid}
	return b.store.TransitionOrder(orderID, allowed, func(o *models.Order) error {
		kind, err := cancelKind(actor, o)
		if err != nil {
			return err
		}

		if o.Status == models.OrderStatusPaid {
			timeToStart := o.StartTime.Sub(now)
			if timeToStart <= 0 && kind == models.ActorRenter {
				return &PermissionError{UserID: actor.UserID, Action: "cancel after start"}
			}
			refund := b.Refund(timeToStart, o.TotalPrice)
			if refund < 0 {
				refund = 0
			}
			if refund > o.TotalPrice {
				refund = o.TotalPrice
			}
			o.RefundAmount = round2(refund)
		}

		o.Status = models.OrderStatusCancelled
		o.CancelReason = reason
		o.CancelledBy = kind
		o.CancelledAt = &now
		return nil
	})
}

// ProcessRefund moves a Cancelled order with a captured payment to
// Refunded once the external processor confirms the settlement. Both
// states are terminal afterwards.
func (b *Booking) ProcessRefund(orderID uint, refundRef string, actor Actor) (*models.Order, error) {
	if !actor.Can(PermProcessRefund) {
		return nil, &PermissionError{UserID: actor.UserID, Action: "process refunds"}
	}
	if refundRef == "" {
		return nil, &ValidationError{Field: "refundRef", Reason: "is required"}
	}
	now := b.now()
	return b.store.TransitionOrder(orderID, []int{models.OrderStatusCancelled}, func(o *models.Order) error {
		if o.PaidAt == nil {
			return &StateError{Event: "refund an unpaid order", Status: o.Status}
		}
		o.Status = models.OrderStatusRefunded
		o.RefundedAt = &now
		return nil
	})
}

// CancelExpired cancels Pending orders older than maxAge on behalf of the
// system. It returns how many were cancelled.
func (b *Booking) CancelExpired(maxAge time.Duration) (int, error) {
	cutoff := b.now().Add(-maxAge)
	stale, err := b.store.PendingCreatedBefore(cutoff)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for i := range stale {
		if _, err := b.CancelOrder(stale[i].ID, "payment timeout", SystemActor); err != nil {
			// Raced with a concurrent payment or cancel; skip it.
			var se *StateError
			if errors.As(err, &se) {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

// HasConflict exposes the advisory check, e.g. for availability previews.
func (b *Booking) HasConflict(spaceID uint, start, end time.Time) (bool, error) {
	return b.validator.HasConflict(spaceID, start, end, 0)
}

func unitPriceFor(space *models.ParkingSpace, billingType string) (float64, error) {
	var price float64
	switch billingType {
	case models.BillingHourly:
		price = space.PricePerHour
	case models.BillingDaily:
		price = space.PricePerDay
	case models.BillingMonthly:
		price = space.PricePerMonth
	default:
		return 0, &ValidationError{Field: "billingType", Reason: "must be hourly, daily or monthly"}
	}
	if price <= 0 {
		return 0, &ValidationError{Field: "billingType", Reason: "not offered by this space"}
	}
	return price, nil
}

func isParty(actor Actor, o *models.Order) bool {
	if actor.Role == RoleAdmin || actor.Role == RoleSystem {
		return true
	}
	return actor.UserID == o.RenterID || actor.UserID == o.OwnerID
}

// cancelKind resolves which party the cancellation is attributed to, or a
// PermissionError if the actor is no party to the order at all.
func cancelKind(actor Actor, o *models.Order) (string, error) {
	switch {
	case actor.Role == RoleSystem:
		return models.ActorSystem, nil
	case actor.Can(PermCancelAnyOrder):
		return models.ActorAdmin, nil
	case actor.UserID == o.RenterID:
		return models.ActorRenter, nil
	case actor.UserID == o.OwnerID:
		return models.ActorOwner, nil
	default:
		return "", &PermissionError{UserID: actor.UserID, Action: "cancel this order"}
	}
}

func isBusinessError(err error) bool {
	var (
		ve *ValidationError
		ce *ConflictError
		se *StateError
		pe *PermissionError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.As(err, &ve) || errors.As(err, &ce) ||
		errors.As(err, &se) || errors.As(err, &pe)
}

const orderNoAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newOrderNo builds a display order number: PK + millisecond timestamp +
// a random 6-character suffix against same-millisecond collisions.
func newOrderNo(now time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, v := range buf {
		buf[i] = orderNoAlphabet[int(v)%len(orderNoAlphabet)]
	}
	return fmt.Sprintf("PK%d%s", now.UnixMilli(), buf)
}
