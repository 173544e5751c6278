package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
)

var kindStatus = map[errs.Kind]int{
	errs.KindInvalidTransition:      http.StatusConflict,
	errs.KindCapacityExceeded:       http.StatusConflict,
	errs.KindDuplicateParticipation: http.StatusConflict,
	errs.KindEditLimitExceeded:      http.StatusConflict,
	errs.KindDuplicateObjection:     http.StatusConflict,
	errs.KindInsufficientTokens:     http.StatusPaymentRequired,
	errs.KindInvalidDecisionContext: http.StatusUnprocessableEntity,
	errs.KindNotReportable:          http.StatusUnprocessableEntity,
	errs.KindNotAuthorized:          http.StatusForbidden,
	errs.KindProfileIncomplete:      http.StatusForbidden,
	errs.KindNotFound:               http.StatusNotFound,
	errs.KindValidation:             http.StatusBadRequest,
}

// respondServiceError maps domain failures to their status and hides
// infrastructure errors behind a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if kind := errs.KindOf(err); kind != "" {
		status, ok := kindStatus[kind]
		if !ok {
			status = http.StatusBadRequest
		}
		respondError(w, status, string(kind), err.Error())
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

func respondBadRequest(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		respondError(w, http.StatusBadRequest, string(errs.KindValidation), fe.Field()+" failed "+fe.Tag()+" validation")
		return
	}
	respondError(w, http.StatusBadRequest, string(errs.KindValidation), err.Error())
}
