package v1

import (
	"net/http"
	"strings"

	"github.com/andreyxaxa/catalog-ingest/internal/controller/restapi/v1/response"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	Bulk ingest catalog records
// @Description Creates one record per manifest item and attaches the files matched to it by file name. Items succeed or fail independently
// @Tags 		catalog
// @Accept 		mpfd
// @Produce 	json
// @Param 		manifest formData string true "JSON array of item descriptors"
// @Param 		files 	 formData file 	 false "Media files named <productId>_primary.<ext> or <productId>_<color>_<n>.<ext>"
// @Success 	200 {object} dto.IngestionReport
// @Failure 	400 {object} response.Error "Missing or invalid manifest, oversized files"
// @Router 		/v1/catalog/bulk [post]
func (r *V1) bulkIngest(ctx *fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "multipart form is required")
	}

	// 1. manifest
	manifest := form.Value["manifest"]
	if len(manifest) == 0 || strings.TrimSpace(manifest[0]) == "" {
		return errorResponse(ctx, http.StatusBadRequest, "manifest is required")
	}

	items, err := decodeManifest(manifest[0])
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	// 2. files
	files, err := readFiles(form.File["files"], r.limits)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	// 3. per-item outcome is in the report, never in the status code
	report := r.ing.Ingest(ctx.UserContext(), items, files)

	return ctx.Status(http.StatusOK).JSON(report)
}

// @Summary 	Get catalog record
// @Description Returns the record with freshly signed media URLs
// @Tags 		catalog
// @Produce 	json
// @Param 		externalId path string true "Product ID"
// @Success 	200 {object} response.Record
// @Failure 	404 {object} response.Error "Record not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/catalog/{externalId} [get]
func (r *V1) getRecord(ctx *fiber.Ctx) error {
	record, err := r.cat.Get(ctx.UserContext(), ctx.Params("externalId"))
	if err != nil {
		return r.useCaseError(ctx, err, "getRecord")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewRecord(record))
}

// @Summary 	Get media URLs
// @Description Regenerates signed URLs of the record's media, in priority order
// @Tags 		catalog
// @Produce 	json
// @Param 		externalId path string true "Product ID"
// @Success 	200 {array} response.Media
// @Failure 	404 {object} response.Error "Record not found"
// @Failure 	502 {object} response.Error "Object store unavailable"
// @Router 		/v1/catalog/{externalId}/media [get]
func (r *V1) getMedia(ctx *fiber.Ctx) error {
	media, err := r.cat.MediaURLs(ctx.UserContext(), ctx.Params("externalId"))
	if err != nil {
		return r.useCaseError(ctx, err, "getMedia")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewMedia(media))
}

// @Summary 	Delete catalog record
// @Description Deletes the record and its media rows, then its objects
// @Tags 		catalog
// @Param 		externalId path string true "Product ID"
// @Success 	204 "Deleted"
// @Failure 	404 {object} response.Error "Record not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/catalog/{externalId} [delete]
func (r *V1) deleteRecord(ctx *fiber.Ctx) error {
	err := r.cat.Delete(ctx.UserContext(), ctx.Params("externalId"))
	if err != nil {
		return r.useCaseError(ctx, err, "deleteRecord")
	}

	return ctx.SendStatus(http.StatusNoContent)
}
