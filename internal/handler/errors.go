package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/order"
)

// fail maps domain errors to HTTP responses. Unknown errors are
// collaborator failures and become 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inputErr    *discount.InputError
		quantityErr *order.InvalidQuantityError
		notFoundErr *order.ProductNotFoundError
		rejectedErr *order.DiscountRejectedError
	)
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusBadRequest) })
			e.Field("message", func(e *jx.Encoder) { e.Str(inputErr.Error()) })
			e.Field("field", func(e *jx.Encoder) { e.Str(inputErr.Field) })
		})
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &quantityErr):
		writeError(w, http.StatusUnprocessableEntity, quantityErr.Error())
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusUnprocessableEntity, notFoundErr.Error())
	case errors.As(err, &rejectedErr):
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnprocessableEntity) })
			e.Field("message", func(e *jx.Encoder) { e.Str(rejectedErr.Message) })
			e.Field("reason", func(e *jx.Encoder) { e.Str(string(rejectedErr.Reason)) })
		})
	case errors.Is(err, context.DeadlineExceeded):
		zctx.From(r.Context()).Warn("Request timed out", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
