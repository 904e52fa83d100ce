package models

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username   string  `json:"username" gorm:"uniqueIndex;size:20"`
	Password   string  `json:"-"`
	Nickname   string  `json:"nickname" gorm:"size:30"`
	AvatarURL  string  `json:"avatarURL"`
	Email      string  `json:"email" gorm:"index"`
	Phone      string  `json:"phone"`
	IsVerified bool    `json:"isVerified" gorm:"default:false"`
	Balance    float64 `json:"balance" gorm:"default:0"`
	Role       string  `json:"role" gorm:"type:varchar(20);default:user;index"` // user, admin
	Status     string  `json:"status" gorm:"type:varchar(20);default:active"`   // active, frozen, banned

	Spaces []ParkingSpace `json:"spaces,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}
