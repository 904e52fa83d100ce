package models

import (
	"time"

	"gorm.io/gorm"
)

// Order status codes. The numeric values follow the wire format used by
// the clients: negatives are the cancel/refund branch, positives advance
// monotonically Pending -> Paid -> InProgress -> Completed.
const (
	OrderStatusRefunded   = -2
	OrderStatusCancelled  = -1
	OrderStatusPending    = 0
	OrderStatusPaid       = 1
	OrderStatusInProgress = 2
	OrderStatusCompleted  = 3
)

// Billing types accepted on order creation.
const (
	BillingHourly  = "hourly"
	BillingDaily   = "daily"
	BillingMonthly = "monthly"
)

// Actors allowed to cancel an order.
const (
	ActorRenter = "renter"
	ActorOwner  = "owner"
	ActorSystem = "system"
	ActorAdmin  = "admin"
)

// Order is a reservation of one parking space for the half-open window
// [StartTime, EndTime). The price fields are a snapshot taken at creation
// and are never recomputed afterwards.
type Order struct {
	gorm.Model
	OrderNo  string `json:"orderNo" gorm:"uniqueIndex;size:32"`
	RenterID uint   `json:"renterID" gorm:"not null;index:idx_orders_renter_status"`
	SpaceID  uint   `json:"spaceID" gorm:"not null;index:idx_orders_space_window"`
	// OwnerID duplicates spaces.owner_id for owner-side queries. It is set
	// by the same write path that sets SpaceID and is rebuildable from it.
	OwnerID uint `json:"ownerID" gorm:"not null;index:idx_orders_owner_status"`

	StartTime time.Time `json:"startTime" gorm:"not null;index:idx_orders_space_window"`
	EndTime   time.Time `json:"endTime" gorm:"not null"`

	ActualStartTime *time.Time `json:"actualStartTime"`
	ActualEndTime   *time.Time `json:"actualEndTime"`

	BillingType    string  `json:"billingType" gorm:"type:varchar(10);default:hourly"`
	UnitPrice      float64 `json:"unitPrice" gorm:"not null"`
	Quantity       int     `json:"quantity" gorm:"not null"`
	OriginalPrice  float64 `json:"originalPrice" gorm:"not null"`
	DiscountAmount float64 `json:"discountAmount" gorm:"default:0"`
	TotalPrice     float64 `json:"totalPrice" gorm:"not null"`

	Status int `json:"status" gorm:"default:0;index:idx_orders_renter_status;index:idx_orders_owner_status"`

	PaymentMethod string     `json:"paymentMethod" gorm:"type:varchar(20)"` // wechat, alipay, balance, none
	TransactionID string     `json:"transactionID"`
	PaidAt        *time.Time `json:"paidAt"`

	PlateNumber string `json:"plateNumber"`
	VehicleType string `json:"vehicleType"`

	CancelReason string     `json:"cancelReason"`
	CancelledBy  string     `json:"cancelledBy" gorm:"type:varchar(10)"` // renter, owner, system, admin
	CancelledAt  *time.Time `json:"cancelledAt"`
	RefundAmount float64    `json:"refundAmount" gorm:"default:0"`
	RefundedAt   *time.Time `json:"refundedAt"`

	RenterRemark string `json:"renterRemark" gorm:"size:200"`
	OwnerRemark  string `json:"ownerRemark" gorm:"size:200"`

	IsReviewed bool `json:"isReviewed" gorm:"default:false"`

	Renter *User         `json:"renter,omitempty" gorm:"foreignKey:RenterID"`
	Owner  *User         `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Space  *ParkingSpace `json:"space,omitempty" gorm:"foreignKey:SpaceID"`
}

// Active reports whether the order occupies its window, which is the set
// of statuses the conflict check considers.
func (o *Order) Active() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusInProgress
}

// Overlaps applies half-open interval semantics, so an order ending
// exactly when another starts does not overlap it.
func (o *Order) Overlaps(start, end time.Time) bool {
	return o.StartTime.Before(end) && start.Before(o.EndTime)
}
