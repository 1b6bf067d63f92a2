package webhooks

import (
	"io"
	"net/http"

	"github.com/angelmondragon/carehub-backend/api/responses"
	"github.com/angelmondragon/carehub-backend/internal/deposits"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// Payments handles payment gateway charge notifications. The body is verified
// against the shared secret before anything is decoded.
func Payments(svc deposits.Service, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deposit service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !deposits.VerifySignature(secret, payload, r.Header.Get(deposits.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		deposit, ok, err := deposits.ParseWebhook(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !ok {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		result, err := svc.Apply(ctx, deposit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := "processed"
		if result.Duplicate {
			status = "duplicate"
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"reference": deposit.Reference,
				"user_id":   deposit.UserID.String(),
				"status":    status,
			}), "deposit webhook handled")
		}
		responses.WriteSuccess(w, map[string]string{"status": status})
	}
}
