package routes

import (
	"github.com/song-xingzhou/MVEN-Parking/services"
	"github.com/song-xingzhou/MVEN-Parking/utils"

	"github.com/kataras/iris/v12"
)

type CreateCommentInput struct {
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	LocationScore *int   `json:"locationScore" validate:"omitempty,min=1,max=5"`
	AccuracyScore *int   `json:"accuracyScore" validate:"omitempty,min=1,max=5"`
	SafetyScore   *int   `json:"safetyScore" validate:"omitempty,min=1,max=5"`
	ValueScore    *int   `json:"valueScore" validate:"omitempty,min=1,max=5"`
	Content       string `json:"content" validate:"max=500"`
	IsAnonymous   bool   `json:"isAnonymous"`
}

// CreateOrderComment files the renter's rating of a completed order. The
// space's aggregate is recomputed in the same transaction.
func CreateOrderComment(ctx iris.Context) {
	actor, ok := utils.ActorFromContext(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		return
	}
	orderID := ctx.Params().GetUintDefault("id", 0)

	var input CreateCommentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	comment, err := rating.SubmitRating(orderID, actor, services.SubmitRatingInput{
		Rating:        input.Rating,
		LocationScore: input.LocationScore,
		AccuracyScore: input.AccuracyScore,
		SafetyScore:   input.SafetyScore,
		ValueScore:    input.ValueScore,
		Content:       input.Content,
		IsAnonymous:   input.IsAnonymous,
	})
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": comment})
}

type ModerateCommentInput struct {
	Status string `json:"status" validate:"required,oneof=visible hidden deleted"`
}

// ModerateComment lets admins hide, restore or soft-delete a comment.
func ModerateComment(ctx iris.Context) {
	actor, ok := utils.ActorFromContext(ctx)
	if !ok {
		ctx.StatusCode(iris.StatusUnauthorized)
		return
	}
	commentID := ctx.Params().GetUintDefault("id", 0)

	var input ModerateCommentInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	comment, err := rating.ModerateComment(commentID, input.Status, actor)
	if err != nil {
		utils.HandleServiceError(err, ctx)
		return
	}

	utils.Audit(ctx, "comment.moderate", "comment", comment.ID, nil, comment)

	ctx.JSON(iris.Map{"success": true, "data": comment})
}
