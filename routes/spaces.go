package routes

import (
	"encoding/json"
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"
	"github.com/song-xingzhou/MVEN-Parking/storage"
	"github.com/song-xingzhou/MVEN-Parking/utils"

	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateSpaceInput struct {
	Title           string   `json:"title" validate:"required,max=50"`
	Description     string   `json:"description" validate:"max=500"`
	Longitude       float64  `json:"longitude" validate:"required,min=-180,max=180"`
	Latitude        float64  `json:"latitude" validate:"required,min=-90,max=90"`
	Province        string   `json:"province"`
	City            string   `json:"city"`
	District        string   `json:"district"`
	Street          string   `json:"street"`
	Address         string   `json:"address" validate:"required"`
	Images          []string `json:"images" validate:"max=9"`
	PricePerHour    float64  `json:"pricePerHour" validate:"required,gt=0"`
	PricePerDay     float64  `json:"pricePerDay" validate:"min=0"`
	PricePerMonth   float64  `json:"pricePerMonth" validate:"min=0"`
	SpaceType       string   `json:"spaceType" validate:"omitempty,oneof=indoor outdoor underground rooftop"`
	SizeType        string   `json:"sizeType" validate:"omitempty,oneof=small medium large xlarge"`
	HasCharger      bool     `json:"hasCharger"`
	HasSurveillance bool     `json:"hasSurveillance"`
	HasLighting     bool     `json:"hasLighting"`
	HasRoof         bool     `json:"hasRoof"`
}

// CreateSpace registers a new parking space owned by the caller. It
// starts in pending status until an admin approves it.
func CreateSpace(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input CreateSpaceInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	images, _ := json.Marshal(input.Images)
	space := models.ParkingSpace{
		OwnerID:         userID,
		Title:           input.Title,
		Description:     input.Description,
		Longitude:       input.Longitude,
		Latitude:        input.Latitude,
		Province:        input.Province,
		City:            input.City,
		District:        input.District,
		Street:          input.Street,
		Address:         input.Address,
		Images:          datatypes.JSON(images),
		PricePerHour:    input.PricePerHour,
		PricePerDay:     input.PricePerDay,
		PricePerMonth:   input.PricePerMonth,
		Status:          models.SpaceStatusPending,
		SpaceType:       input.SpaceType,
		SizeType:        input.SizeType,
		HasCharger:      input.HasCharger,
		HasSurveillance: input.HasSurveillance,
		HasLighting:     input.HasLighting,
		HasRoof:         input.HasRoof,
	}

	if err := storage.DB.Create(&space).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": space})
}

// GetSpace returns one space and bumps its view counter.
func GetSpace(ctx iris.Context) {
	spaceID := ctx.Params().GetUintDefault("id", 0)
	if spaceID == 0 {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "invalid space ID", ctx)
		return
	}

	var space models.ParkingSpace
	if err := storage.DB.Preload("Owner").First(&space, spaceID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	storage.DB.Model(&space).Update("view_count", gorm.Expr("view_count + 1"))

	ctx.JSON(iris.Map{"success": true, "data": space})
}

// ListMySpaces returns the caller's spaces, newest first.
func ListMySpaces(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var spaces []models.ParkingSpace
	if err := storage.DB.Where("owner_id = ?", userID).Order("created_at DESC").Find(&spaces).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "data": spaces})
}

type UpdateSpaceStatusInput struct {
	Status string `json:"status" validate:"required,oneof=available occupied offline"`
}

// UpdateSpaceStatus lets the owner open, occupy or retire a space.
// Pending is not reachable here; only admin approval leaves it.
func UpdateSpaceStatus(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	spaceID := ctx.Params().GetUintDefault("id", 0)

	var input UpdateSpaceStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var space models.ParkingSpace
	if err := storage.DB.Where("id = ? AND owner_id = ?", spaceID, userID).First(&space).Error; err != nil {
		utils.CreateError(iris.StatusForbidden, "Forbidden", "space not found or access denied", ctx)
		return
	}

	if space.Status == models.SpaceStatusPending {
		utils.CreateError(iris.StatusConflict, "Invalid state", "space is awaiting approval", ctx)
		return
	}

	if err := storage.DB.Model(&space).Update("status", input.Status).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": space})
}

// ApproveSpace is the admin moderation step that makes a pending space
// bookable.
func ApproveSpace(ctx iris.Context) {
	adminID := ctx.Values().Get("userID").(uint)
	spaceID := ctx.Params().GetUintDefault("id", 0)

	var space models.ParkingSpace
	if err := storage.DB.First(&space, spaceID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	before := space
	now := time.Now()
	space.IsApproved = true
	space.ApprovedByID = &adminID
	if space.Status == models.SpaceStatusPending {
		space.Status = models.SpaceStatusAvailable
	}
	space.UpdatedAt = now

	if err := storage.DB.Save(&space).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "space.approve", "parking_space", space.ID, before, space)

	ctx.JSON(iris.Map{"success": true, "data": space})
}

// ListSpaceComments returns the visible comments feeding the space's
// rating aggregate.
func ListSpaceComments(ctx iris.Context) {
	spaceID := ctx.Params().GetUintDefault("id", 0)
	if spaceID == 0 {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "invalid space ID", ctx)
		return
	}

	var space models.ParkingSpace
	if err := storage.DB.First(&space, spaceID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var comments []models.Comment
	err := storage.DB.Preload("Renter").
		Where("space_id = ? AND status = ?", spaceID, models.CommentStatusVisible).
		Order("is_pinned DESC, created_at DESC").
		Find(&comments).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	// Anonymous comments drop the renter reference before leaving the API.
	for i := range comments {
		if comments[i].IsAnonymous {
			comments[i].Renter = nil
			comments[i].RenterID = 0
		}
	}

	ctx.JSON(iris.Map{
		"success": true,
		"data": iris.Map{
			"comments":    comments,
			"avgRating":   space.AvgRating,
			"reviewCount": space.ReviewCount,
		},
	})
}
