package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC)
}

func newTestBooking() (*Booking, *memoryStore) {
	store := newMemoryStore()
	b := NewBooking(store)
	b.now = func() time.Time { return bookingNow }
	return b, store
}

func addTestSpace(store *memoryStore) *models.ParkingSpace {
	return store.addSpace(models.ParkingSpace{
		OwnerID:      1,
		Title:        "Garage slot B2",
		Latitude:     30.5728,
		Longitude:    104.0668,
		PricePerHour: 10,
		PricePerDay:  100,
		Status:       models.SpaceStatusAvailable,
		IsApproved:   true,
	})
}

func createPending(t *testing.T, b *Booking, spaceID uint, start, end time.Time) *models.Order {
	t.Helper()
	o, err := b.CreateOrder(2, CreateOrderInput{
		SpaceID:     spaceID,
		StartTime:   start,
		EndTime:     end,
		BillingType: models.BillingHourly,
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrderTakesPriceSnapshot(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)

	o, err := b.CreateOrder(2, CreateOrderInput{
		SpaceID:     space.ID,
		StartTime:   at(10, 0),
		EndTime:     at(12, 10),
		BillingType: models.BillingHourly,
		PlateNumber: "川A12345",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.Equal(t, space.OwnerID, o.OwnerID)
	assert.Equal(t, 3, o.Quantity)
	assert.Equal(t, 10.0, o.UnitPrice)
	assert.Equal(t, 30.0, o.OriginalPrice)
	assert.Equal(t, 30.0, o.TotalPrice)
	assert.True(t, strings.HasPrefix(o.OrderNo, "PK"))
	assert.False(t, o.IsReviewed)
}

func TestCreateOrderAppliesDiscount(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	b.Discount = func(q Quote) float64 { return 5 }

	o := createPending(t, b, space.ID, at(10, 0), at(12, 10))
	assert.Equal(t, 30.0, o.OriginalPrice)
	assert.Equal(t, 5.0, o.DiscountAmount)
	assert.Equal(t, 25.0, o.TotalPrice)
}

func TestCreateOrderValidation(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)

	var ve *ValidationError
	var pe *PermissionError
	var se *StateError

	_, err := b.CreateOrder(2, CreateOrderInput{SpaceID: space.ID, StartTime: at(12, 0), EndTime: at(10, 0), BillingType: models.BillingHourly})
	require.ErrorAs(t, err, &ve, "inverted interval")

	_, err = b.CreateOrder(2, CreateOrderInput{SpaceID: space.ID, StartTime: at(7, 0), EndTime: at(9, 0), BillingType: models.BillingHourly})
	require.ErrorAs(t, err, &ve, "start in the past")

	_, err = b.CreateOrder(2, CreateOrderInput{SpaceID: 999, StartTime: at(10, 0), EndTime: at(11, 0), BillingType: models.BillingHourly})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = b.CreateOrder(space.OwnerID, CreateOrderInput{SpaceID: space.ID, StartTime: at(10, 0), EndTime: at(11, 0), BillingType: models.BillingHourly})
	require.ErrorAs(t, err, &pe, "owner booking own space")

	_, err = b.CreateOrder(2, CreateOrderInput{SpaceID: space.ID, StartTime: at(10, 0), EndTime: at(11, 0), BillingType: models.BillingMonthly})
	require.ErrorAs(t, err, &ve, "monthly price not offered")

	offline := store.addSpace(models.ParkingSpace{OwnerID: 1, PricePerHour: 5, Status: models.SpaceStatusOffline, IsApproved: true})
	_, err = b.CreateOrder(2, CreateOrderInput{SpaceID: offline.ID, StartTime: at(10, 0), EndTime: at(11, 0), BillingType: models.BillingHourly})
	require.ErrorAs(t, err, &se, "offline space is not bookable")
}

func TestCreateOrderAdvisoryConflictCheck(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)

	first := createPending(t, b, space.ID, at(10, 0), at(11, 0))

	// A pending order holds nothing, so an overlapping create succeeds.
	_ = createPending(t, b, space.ID, at(10, 0), at(11, 0))

	_, err := b.ConfirmPayment(first.ID, "wechat", "txn-1")
	require.NoError(t, err)

	// Once the first is Paid the pre-check rejects overlapping creates.
	_, err = b.CreateOrder(3, CreateOrderInput{SpaceID: space.ID, StartTime: at(10, 30), EndTime: at(11, 30), BillingType: models.BillingHourly})
	require.True(t, IsConflict(err))

	// Back-to-back is no conflict under half-open semantics.
	_, err = b.CreateOrder(3, CreateOrderInput{SpaceID: space.ID, StartTime: at(11, 0), EndTime: at(12, 0), BillingType: models.BillingHourly})
	require.NoError(t, err)
}

func TestConfirmPaymentHappyPathAndIdempotency(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(11, 0))

	paid, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, "txn-1", paid.TransactionID)

	// Replaying the same callback is a no-op success, not a double charge.
	again, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, again.Status)

	// A different reference against a paid order is a state error.
	var se *StateError
	_, err = b.ConfirmPayment(o.ID, "wechat", "txn-2")
	require.ErrorAs(t, err, &se)

	sp, err := store.SpaceByID(space.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sp.OrderCount)
	assert.Equal(t, paid.TotalPrice, sp.TotalRevenue)
}

func TestConfirmPaymentRace(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)

	first := createPending(t, b, space.ID, at(10, 0), at(11, 0))
	second := createPending(t, b, space.ID, at(10, 0), at(11, 0))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = b.ConfirmPayment(id, "wechat", fmt.Sprintf("txn-%d", i))
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	conflicted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one confirmation wins")
	assert.Equal(t, 1, conflicted, "the loser observes a conflict")

	assertNoActiveOverlap(t, store, space.ID)
}

func TestConfirmPaymentManyWayRace(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)

	const n = 16
	ids := make([]uint, n)
	for i := 0; i < n; i++ {
		// Staggered but mutually overlapping one-hour windows.
		start := at(10, 0).Add(time.Duration(i) * time.Minute)
		ids[i] = createPending(t, b, space.ID, start, start.Add(time.Hour)).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.ConfirmPayment(ids[i], "alipay", fmt.Sprintf("txn-%d", i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !IsConflict(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assertNoActiveOverlap(t, store, space.ID)
}

func TestConfirmPaymentRetriesTransientFailures(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(11, 0))

	store.confirmErrs = []error{errors.New("connection reset")}
	paid, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
}

func TestConfirmPaymentGivesUpAfterBoundedRetries(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(11, 0))

	transient := errors.New("connection reset")
	store.confirmErrs = []error{transient, transient, transient}
	_, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.ErrorIs(t, err, transient)
}

func TestUsageLifecycle(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(11, 0))
	renter := Actor{UserID: 2, Role: RoleUser}

	// Cannot start an unpaid order.
	var se *StateError
	_, err := b.StartUsage(o.ID, renter)
	require.ErrorAs(t, err, &se)

	_, err = b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)

	// A stranger may not start usage.
	var pe *PermissionError
	_, err = b.StartUsage(o.ID, Actor{UserID: 42, Role: RoleUser})
	require.ErrorAs(t, err, &pe)

	started, err := b.StartUsage(o.ID, renter)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusInProgress, started.Status)
	require.NotNil(t, started.ActualStartTime)

	completed, err := b.CompleteUsage(o.ID, renter)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, completed.Status)
	require.NotNil(t, completed.ActualEndTime)
	assert.False(t, completed.IsReviewed)

	// Completed is terminal for usage events.
	_, err = b.StartUsage(o.ID, renter)
	require.ErrorAs(t, err, &se)
	_, err = b.CompleteUsage(o.ID, renter)
	require.ErrorAs(t, err, &se)
	_, err = b.CancelOrder(o.ID, "too late", renter)
	require.ErrorAs(t, err, &se)
}

func TestCancelPendingHasNoRefund(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(11, 0))

	cancelled, err := b.CancelOrder(o.ID, "changed my mind", Actor{UserID: 2, Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, models.ActorRenter, cancelled.CancelledBy)
	assert.Equal(t, 0.0, cancelled.RefundAmount)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestCancelPaidBeforeStartRefundsInFull(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(12, 0))
	_, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)

	cancelled, err := b.CancelOrder(o.ID, "plans changed", Actor{UserID: 2, Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, cancelled.TotalPrice, cancelled.RefundAmount)
}

func TestCancelPaidAfterStart(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(12, 0))
	_, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)

	// Move the clock past the booked start.
	b.now = func() time.Time { return at(10, 30) }

	var pe *PermissionError
	_, err = b.CancelOrder(o.ID, "no-show", Actor{UserID: 2, Role: RoleUser})
	require.ErrorAs(t, err, &pe, "renter may not cancel after start")

	cancelled, err := b.CancelOrder(o.ID, "renter never arrived", Actor{UserID: space.OwnerID, Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, models.ActorOwner, cancelled.CancelledBy)
	assert.Equal(t, 0.0, cancelled.RefundAmount, "default policy refunds nothing after start")
}

func TestCancelCustomRefundPolicy(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	b.Refund = func(timeToStart time.Duration, amount float64) float64 {
		if timeToStart > time.Hour {
			return amount
		}
		return amount / 2
	}

	o := createPending(t, b, space.ID, at(8, 30), at(9, 30))
	_, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)

	cancelled, err := b.CancelOrder(o.ID, "late cancel", Actor{UserID: 2, Role: RoleUser})
	require.NoError(t, err)
	assert.Equal(t, cancelled.TotalPrice/2, cancelled.RefundAmount)
}

func TestCancelByStranger(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	o := createPending(t, b, space.ID, at(10, 0), at(11, 0))

	var pe *PermissionError
	_, err := b.CancelOrder(o.ID, "nope", Actor{UserID: 77, Role: RoleUser})
	require.ErrorAs(t, err, &pe)

	// Admins may cancel anything.
	cancelled, err := b.CancelOrder(o.ID, "fraud", Actor{UserID: 77, Role: RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.ActorAdmin, cancelled.CancelledBy)
}

func TestProcessRefund(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)
	admin := Actor{UserID: 9, Role: RoleAdmin}

	o := createPending(t, b, space.ID, at(10, 0), at(11, 0))
	_, err := b.ConfirmPayment(o.ID, "wechat", "txn-1")
	require.NoError(t, err)
	_, err = b.CancelOrder(o.ID, "refund me", Actor{UserID: 2, Role: RoleUser})
	require.NoError(t, err)

	var pe *PermissionError
	_, err = b.ProcessRefund(o.ID, "rf-1", Actor{UserID: 2, Role: RoleUser})
	require.ErrorAs(t, err, &pe, "refund processing is admin/system only")

	refunded, err := b.ProcessRefund(o.ID, "rf-1", admin)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)

	// Refunded is terminal.
	var se *StateError
	_, err = b.ProcessRefund(o.ID, "rf-2", admin)
	require.ErrorAs(t, err, &se)

	// A never-paid cancellation has nothing to refund.
	unpaid := createPending(t, b, space.ID, at(14, 0), at(15, 0))
	_, err = b.CancelOrder(unpaid.ID, "never paid", Actor{UserID: 2, Role: RoleUser})
	require.NoError(t, err)
	_, err = b.ProcessRefund(unpaid.ID, "rf-3", admin)
	require.ErrorAs(t, err, &se)
}

func TestCancelExpiredPendingOrders(t *testing.T) {
	b, store := newTestBooking()
	space := addTestSpace(store)

	stale := createPending(t, b, space.ID, at(10, 0), at(11, 0))
	fresh := createPending(t, b, space.ID, at(14, 0), at(15, 0))

	store.mu.Lock()
	store.orders[stale.ID].CreatedAt = bookingNow.Add(-time.Hour)
	store.orders[fresh.ID].CreatedAt = bookingNow.Add(-time.Minute)
	store.mu.Unlock()

	n, err := b.CancelExpired(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.OrderByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, models.ActorSystem, got.CancelledBy)

	got, err = store.OrderByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

// assertNoActiveOverlap checks the engine's core invariant: no two
// Paid/InProgress orders of a space overlap in time.
func assertNoActiveOverlap(t *testing.T, store *memoryStore, spaceID uint) {
	t.Helper()
	active, err := store.ActiveOrders(spaceID)
	require.NoError(t, err)
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			require.False(t, a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime),
				"orders %d and %d overlap", a.ID, b.ID)
		}
	}
}
