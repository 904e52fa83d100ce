package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Parking space availability states. A space is never deleted, it is
// retired by moving it to offline.
const (
	SpaceStatusPending   = "pending"
	SpaceStatusAvailable = "available"
	SpaceStatusOccupied  = "occupied"
	SpaceStatusOffline   = "offline"
)

type ParkingSpace struct {
	gorm.Model
	OwnerID     uint    `json:"ownerID" gorm:"not null;index"`
	Title       string  `json:"title" gorm:"size:50;not null"`
	Description string  `json:"description" gorm:"size:500"`
	Longitude   float64 `json:"longitude" gorm:"not null;index"`
	Latitude    float64 `json:"latitude" gorm:"not null;index"`

	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`
	Street   string `json:"street"`
	Address  string `json:"address" gorm:"not null"`

	Images    datatypes.JSON `json:"images"`
	TimeSlots datatypes.JSON `json:"timeSlots"` // weekly open windows, informational

	PricePerHour  float64 `json:"pricePerHour" gorm:"not null"`
	PricePerDay   float64 `json:"pricePerDay"`
	PricePerMonth float64 `json:"pricePerMonth"`

	Status    string `json:"status" gorm:"type:varchar(20);default:pending;index"`
	SpaceType string `json:"spaceType" gorm:"type:varchar(20);default:outdoor"` // indoor, outdoor, underground, rooftop
	SizeType  string `json:"sizeType" gorm:"type:varchar(20);default:medium"`   // small, medium, large, xlarge

	HasCharger      bool `json:"hasCharger" gorm:"default:false"`
	HasSurveillance bool `json:"hasSurveillance" gorm:"default:false"`
	HasLighting     bool `json:"hasLighting" gorm:"default:false"`
	HasRoof         bool `json:"hasRoof" gorm:"default:false"`

	// Denormalized stats. AvgRating and ReviewCount are derived from the
	// visible comments of the space and rebuilt by full recomputation,
	// never incremented in place.
	ViewCount    int     `json:"viewCount" gorm:"default:0"`
	OrderCount   int     `json:"orderCount" gorm:"default:0"`
	TotalRevenue float64 `json:"totalRevenue" gorm:"default:0"`
	AvgRating    float64 `json:"avgRating" gorm:"default:0"`
	ReviewCount  int     `json:"reviewCount" gorm:"default:0"`

	IsApproved   bool  `json:"isApproved" gorm:"default:false;index"`
	ApprovedByID *uint `json:"approvedByID"`

	Owner    *User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Orders   []Order   `json:"orders,omitempty" gorm:"foreignKey:SpaceID"`
	Comments []Comment `json:"comments,omitempty" gorm:"foreignKey:SpaceID"`
}

// MarshalJSON renders the Images JSON column as a plain string array.
func (p *ParkingSpace) MarshalJSON() ([]byte, error) {
	type Alias ParkingSpace
	aux := &struct {
		Images []string `json:"images"`
		*Alias
	}{
		Images: []string{},
		Alias:  (*Alias)(p),
	}

	if len(p.Images) > 0 {
		var images []string
		if err := json.Unmarshal(p.Images, &images); err == nil {
			aux.Images = images
		}
	}

	return json.Marshal(aux)
}

// Bookable reports whether renters may create orders against the space.
func (p *ParkingSpace) Bookable() bool {
	return p.Status == SpaceStatusAvailable && p.IsApproved
}
