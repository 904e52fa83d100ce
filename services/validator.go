package services

import (
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"
)

// OrderQuerier is the read side the validator needs: the orders that
// currently occupy a space's calendar (status Paid or InProgress).
type OrderQuerier interface {
	ActiveOrders(spaceID uint) ([]models.Order, error)
}

// ReservationValidator answers whether a candidate window collides with
// an existing active reservation. It is a bare read and therefore only
// advisory: the authoritative check is folded into the Pending->Paid
// commit inside the store.
type ReservationValidator struct {
	orders OrderQuerier
}

func NewReservationValidator(orders OrderQuerier) *ReservationValidator {
	return &ReservationValidator{orders: orders}
}

// HasConflict reports whether [start, end) overlaps any Paid/InProgress
// order of the space. Intervals are half-open, so back-to-back bookings
// do not conflict. excludeOrderID lets an order under confirmation skip
// itself; pass 0 to exclude nothing.
func (v *ReservationValidator) HasConflict(spaceID uint, start, end time.Time, excludeOrderID uint) (bool, error) {
	active, err := v.orders.ActiveOrders(spaceID)
	if err != nil {
		return false, err
	}
	for i := range active {
		if active[i].ID == excludeOrderID {
			continue
		}
		if active[i].Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}
