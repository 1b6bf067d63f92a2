package controllers

import (
	"net/http"

	"github.com/angelmondragon/carehub-backend/api/responses"
	"github.com/angelmondragon/carehub-backend/api/validators"
	"github.com/angelmondragon/carehub-backend/internal/referrals"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
)

// Signup opens the wallet for a newly registered account and pays any
// referral bonus. It is called by the identity service, not by end users.
func Signup(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body referrals.SignupInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseUserRole(string(body.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").
				WithDetails(map[string]any{"field": "role"}))
			return
		}
		body.Role = role
		body.Username = validators.SanitizeString(body.Username, 80)
		body.ReferralCode = validators.SanitizeString(body.ReferralCode, 80)

		result, err := svc.ApplySignup(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
