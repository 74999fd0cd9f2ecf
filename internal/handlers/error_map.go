package handlers

import (
	"net/http"

	"deals-system/internal/apperror"
	"deals-system/internal/logger"
)

// writeServiceError maps typed service errors to HTTP statuses. Unknown
// errors and invalid-state errors are logged and hidden behind a generic
// 500 message.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case apperror.Is(err, apperror.KindValidation):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case apperror.Is(err, apperror.KindConflict):
		writeErrorResponse(w, http.StatusConflict, err.Error())
	case apperror.Is(err, apperror.KindNotEligible):
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case apperror.Is(err, apperror.KindInvalidToken):
		// indistinguishable from a missing coupon
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case apperror.Is(err, apperror.KindWrongPartner):
		writeErrorResponse(w, http.StatusForbidden, err.Error())
	case apperror.Is(err, apperror.KindExpired):
		writeErrorResponse(w, http.StatusGone, err.Error())
	case apperror.Is(err, apperror.KindAlreadyRedeemed):
		response := ErrorResponse{
			Error:   http.StatusText(http.StatusConflict),
			Message: err.Error(),
		}
		if meta := apperror.Meta(err); meta != nil {
			response.RedeemedAt = meta["redeemed_at"]
		}
		writeJSONResponse(w, http.StatusConflict, response)
	default:
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
	}
}
