package emergency

import (
	"net/http"

	"github.com/angelmondragon/carehub-backend/api/middleware"
	"github.com/angelmondragon/carehub-backend/api/responses"
	"github.com/angelmondragon/carehub-backend/api/validators"
	internalemergency "github.com/angelmondragon/carehub-backend/internal/emergency"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
)

// Request geocodes the incident and dispatches the nearest provider.
func Request(svc internalemergency.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body internalemergency.RequestInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.CallerID = userID
		body.NatureOfIncident = validators.SanitizeString(body.NatureOfIncident, 500)
		body.Address = validators.SanitizeString(body.Address, 300)
		body.State = validators.SanitizeString(body.State, 100)
		body.LGA = validators.SanitizeString(body.LGA, 100)
		body.Ward = validators.SanitizeString(body.Ward, 100)

		result, err := svc.Request(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Records lists the dispatches assigned to the calling facility.
func Records(svc internalemergency.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := svc.ListByFacility(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"records": records})
	}
}
