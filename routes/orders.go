package routes

import (
	"time"

	"github.com/song-xingzhou/MVEN-Parking/models"
	"github.com/song-xingzhou/MVEN-Parking/services"
	"github.com/song-xingzhou/MVEN-Parking/storage"
	"github.com/song-xingzhou/MVEN-Parking/utils"

	"github.com/kataras/iris/v12"
)

type CreateOrderInput struct {
	SpaceID     uint      `json:"spaceID" validate:"required"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`
	BillingType string    `json:"billingType" validate:"required,oneof=hourly daily monthly"`
	PlateNumber string    `json:"plateNumber" validate:"max=10"`
	VehicleType string    `json:"vehicleType" validate:"max=20"`
	Remark      string    `json:"remark" validate:"max=200"`
}

// CreateOrder places a reservation request. The order lands in Pending;
// the slot is only held once payment is confirmed.
func CreateOrder(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input CreateOrderInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	order, err := booking.CreateOrder(userID, services.CreateOrderInput{
		SpaceID:     input.SpaceID,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		BillingType: input.BillingType,
		PlateNumber: input.PlateNumber,
		VehicleType: input.VehicleType,
		Remark:      input.Remark,
	})
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": order})
}

type PayOrderInput struct {
	Method        string `json:"method" validate:"required,oneof=wechat alipay balance none"`
	TransactionID string `json:"transactionID" validate:"required"`
}

// PayOrder is the payment confirmation callback. The conflict re-check
// and the Pending->Paid write commit atomically; a lost race surfaces as
// 409 and the renter keeps their money.
func PayOrder(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	orderID := ctx.Params().GetUintDefault("id", 0)

	var input PayOrderInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existing models.Order
	if err := storage.DB.First(&existing, orderID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if existing.RenterID != userID {
		utils.CreateError(iris.StatusForbidden, "Forbidden", "not your order", ctx)
		return
	}

	order, err := booking.ConfirmPayment(orderID, input.Method, input.TransactionID)
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": order})
}

// ListMyOrders returns a page of the caller's orders, renter-side by
// default or owner-side with ?as=owner.
func ListMyOrders(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	asOwner := ctx.URLParam("as") == "owner"
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("perPage", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	column := "renter_id"
	if asOwner {
		column = "owner_id"
	}

	var total int64
	if err := storage.DB.Model(&models.Order{}).Where(column+" = ?", userID).Count(&total).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var orders []models.Order
	err := storage.DB.Preload("Space").
		Where(column+" = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&orders).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	utils.JSONPage(ctx, orders, page, perPage, total)
}

// GetOrder returns one order to either party.
func GetOrder(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	orderID := ctx.Params().GetUintDefault("id", 0)

	var order models.Order
	if err := storage.DB.Preload("Space").First(&order, orderID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if order.RenterID != userID && order.OwnerID != userID {
		utils.CreateError(iris.StatusForbidden, "Forbidden", "not your order", ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "data": order})
}

// StartOrder records that usage of the space began.
func StartOrder(ctx iris.Context) {
	actor, ok := utils.ActorFromContext(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		return
	}
	orderID := ctx.Params().GetUintDefault("id", 0)

	order, err := booking.StartUsage(orderID, actor)
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "data": order})
}

// CompleteOrder records that usage ended; the order becomes reviewable.
func CompleteOrder(ctx iris.Context) {
	actor, ok := utils.ActorFromContext(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		return
	}
	orderID := ctx.Params().GetUintDefault("id", 0)

	order, err := booking.CompleteUsage(orderID, actor)
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "data": order})
}

type CancelOrderInput struct {
	Reason string `json:"reason" validate:"max=200"`
}

func CancelOrder(ctx iris.Context) {
	actor, ok := utils.ActorFromContext(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		return
	}
	orderID := ctx.Params().GetUintDefault("id", 0)

	var input CancelOrderInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	order, err := booking.CancelOrder(orderID, input.Reason, actor)
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}
	ctx.JSON(iris.Map{"success": true, "data": order})
}

type RefundOrderInput struct {
	RefundRef string `json:"refundRef" validate:"required"`
}

// RefundOrder settles a cancelled order once the payment processor has
// confirmed the refund. Admin only.
func RefundOrder(ctx iris.Context) {
	actor, ok := utils.ActorFromContext(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		return
	}
	orderID := ctx.Params().GetUintDefault("id", 0)

	var input RefundOrderInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	order, err := booking.ProcessRefund(orderID, input.RefundRef, actor)
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}

	utils.Audit(ctx, "order.refund", "order", order.ID, nil, order)

	ctx.JSON(iris.Map{"success": true, "data": order})
}
