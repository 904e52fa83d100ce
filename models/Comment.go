package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Comment visibility states. Only visible comments feed the space's
// rating aggregate.
const (
	CommentStatusVisible = "visible"
	CommentStatusHidden  = "hidden"
	CommentStatusDeleted = "deleted"
)

// Comment is the renter's rating of a completed order. One order carries
// at most one comment.
type Comment struct {
	gorm.Model
	OrderID  uint `json:"orderID" gorm:"not null;uniqueIndex"`
	RenterID uint `json:"renterID" gorm:"not null;index"`
	SpaceID  uint `json:"spaceID" gorm:"not null;index"`
	OwnerID  uint `json:"ownerID" gorm:"not null;index"`

	Rating int `json:"rating" gorm:"not null;check:rating >= 1 AND rating <= 5"`

	// Optional sub-scores, each 1..5 when present.
	LocationScore *int `json:"locationScore"`
	AccuracyScore *int `json:"accuracyScore"`
	SafetyScore   *int `json:"safetyScore"`
	ValueScore    *int `json:"valueScore"`

	Content     string         `json:"content" gorm:"size:500"`
	Images      datatypes.JSON `json:"images"`
	IsAnonymous bool           `json:"isAnonymous" gorm:"default:false"`

	ReplyContent string     `json:"replyContent" gorm:"size:500"`
	RepliedAt    *time.Time `json:"repliedAt"`

	Status    string `json:"status" gorm:"type:varchar(10);default:visible;index"`
	IsPinned  bool   `json:"isPinned" gorm:"default:false"`
	LikeCount int    `json:"likeCount" gorm:"default:0"`

	Order  *Order        `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Renter *User         `json:"renter,omitempty" gorm:"foreignKey:RenterID"`
	Space  *ParkingSpace `json:"space,omitempty" gorm:"foreignKey:SpaceID"`
}
