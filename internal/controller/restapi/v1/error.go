package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/andreyxaxa/catalog-ingest/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Error: msg})
}

var statusBySentinel = []struct {
	err  error
	code int
}{
	{errs.ErrRecordNotFound, http.StatusNotFound},
	{errs.ErrValidation, http.StatusBadRequest},
	{errs.ErrUnknownCommand, http.StatusBadRequest},
	{errs.ErrDuplicate, http.StatusConflict},
	{errs.ErrInvalidTransition, http.StatusConflict},
	{errs.ErrNoPrimaryMedia, http.StatusUnprocessableEntity},
	{errs.ErrReference, http.StatusUnprocessableEntity},
	{errs.ErrStorageTransport, http.StatusBadGateway},
}

// useCaseError answers with the status matching err's sentinel. Client
// errors carry the message from the sentinel onwards, without the call
// chain prefix; anything else is logged and answered with 500.
func (r *V1) useCaseError(ctx *fiber.Ctx, err error, caller string) error {
	for _, s := range statusBySentinel {
		if !errors.Is(err, s.err) {
			continue
		}
		if s.code >= http.StatusInternalServerError {
			r.logger.Error(err, "restapi - v1 - %s", caller)
		}
		return errorResponse(ctx, s.code, publicMessage(err, s.err))
	}

	r.logger.Error(err, "restapi - v1 - %s", caller)

	return errorResponse(ctx, http.StatusInternalServerError, "internal error")
}

func publicMessage(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return msg[i:]
	}

	return sentinel.Error()
}
