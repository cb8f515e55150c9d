package common

import (
	"errors"
	"net/http"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/aggregation"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/domain/lifecycle"
	"family-ledger-go/internal/gateway"
	"family-ledger-go/pkg/logger"
)

// WriteDomainError maps err onto the error envelope. Expected failures are
// logged as business errors, the rest as internal ones.
func WriteDomainError(w http.ResponseWriter, log logger.Logger, op string, err error, args ...any) {
	log = logger.OrNop(log)

	var (
		validation   *ledger.ValidationError
		confirmation *lifecycle.ConfirmationError
		apiErr       *gateway.APIError
	)
	switch {
	case errors.As(err, &validation):
		log.BusinessError(op+": invalid request", err, args...)
		writeError(w, http.StatusBadRequest, "invalid_request", validation.Error())
	case errors.As(err, &confirmation):
		writeError(w, http.StatusPreconditionRequired, "confirmation_required", confirmation.Prompt)
	case errors.Is(err, ledger.ErrUnauthenticated):
		log.BusinessError(op+": unauthenticated", err, args...)
		writeError(w, http.StatusUnauthorized, "unauthenticated", "session expired, log in again")
	case errors.Is(err, ledger.ErrForbidden):
		log.BusinessError(op+": forbidden", err, args...)
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, aggregation.ErrSnapshotNotFound), gateway.IsNotFound(err):
		log.BusinessError(op+": not found", err, args...)
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, lifecycle.ErrPreconditionFailed):
		log.BusinessError(op+": invalid state", err, args...)
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, lifecycle.ErrUploadFailed):
		log.BusinessError(op+": upload failed", err, args...)
		writeError(w, http.StatusBadGateway, "upload_failed", err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status >= http.StatusInternalServerError {
			log.InternalError(op+": gateway error", err, args...)
			status = http.StatusBadGateway
		} else {
			log.BusinessError(op+": gateway rejected request", err, args...)
		}
		writeError(w, status, "gateway_error", apiErr.Message)
	case errors.Is(err, cache.ErrUnmounted):
		log.Debug(op+": request gone before results arrived", args...)
		writeError(w, http.StatusServiceUnavailable, "request_cancelled", "request cancelled")
	default:
		log.InternalError(op+": failed", err, args...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// CollectionError returns the failure recorded for collection, if any.
func CollectionError(snapshot cache.Snapshot, collection cache.Collection) error {
	for _, failure := range snapshot.Failures {
		if failure.Collection == collection {
			return failure.Err
		}
	}
	return nil
}
