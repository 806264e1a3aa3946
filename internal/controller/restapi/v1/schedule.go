package v1

import (
	"net/http"

	"github.com/andreyxaxa/catalog-ingest/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Schedule publication
// @Description Moves a draft to scheduled. publishAt is built from scheduledDate and scheduledTime and must be in the future
// @Tags 		publishing
// @Accept 		json
// @Produce 	json
// @Param 		externalId path string 				 true "Product ID"
// @Param 		request    body dto.ScheduleRequest true "Schedule"
// @Success 	200 {object} response.Record
// @Failure 	400 {object} response.Error "Invalid schedule"
// @Failure 	404 {object} response.Error "Record not found"
// @Failure 	409 {object} response.Error "Transition not allowed"
// @Failure 	422 {object} response.Error "No primary media"
// @Router 		/v1/catalog/{externalId}/schedule [post]
func (r *V1) schedule(ctx *fiber.Ctx) error {
	var req dto.ScheduleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	record, err := r.pub.Schedule(ctx.UserContext(), ctx.Params("externalId"), req)
	if err != nil {
		return r.useCaseError(ctx, err, "schedule")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewRecord(record))
}

// @Summary 	Publish now
// @Description Moves a draft or scheduled record to published
// @Tags 		publishing
// @Produce 	json
// @Param 		externalId path string true "Product ID"
// @Success 	200 {object} response.Record
// @Failure 	404 {object} response.Error "Record not found"
// @Failure 	409 {object} response.Error "Transition not allowed"
// @Failure 	422 {object} response.Error "No primary media"
// @Router 		/v1/catalog/{externalId}/publish [post]
func (r *V1) publish(ctx *fiber.Ctx) error {
	record, err := r.pub.Publish(ctx.UserContext(), ctx.Params("externalId"))
	if err != nil {
		return r.useCaseError(ctx, err, "publish")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewRecord(record))
}

// @Summary 	Cancel schedule
// @Description Returns a scheduled record to draft
// @Tags 		publishing
// @Produce 	json
// @Param 		externalId path string true "Product ID"
// @Success 	200 {object} response.Record
// @Failure 	404 {object} response.Error "Record not found"
// @Failure 	409 {object} response.Error "Transition not allowed"
// @Router 		/v1/catalog/{externalId}/cancel [post]
func (r *V1) cancel(ctx *fiber.Ctx) error {
	record, err := r.pub.Cancel(ctx.UserContext(), ctx.Params("externalId"))
	if err != nil {
		return r.useCaseError(ctx, err, "cancel")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewRecord(record))
}
