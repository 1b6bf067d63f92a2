package deposits

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
const SignatureHeader = "X-Gateway-Signature"

const eventChargeSuccess = "charge.success"

// VerifySignature reports whether signature is the HMAC-SHA512 of body under secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign returns the hex signature the gateway would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookPayload is the gateway's charge notification.
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
		Metadata  struct {
			UserID string `json:"userId"`
		} `json:"metadata"`
	} `json:"data"`
}

// ParseWebhook decodes a charge notification into a Deposit. Events other than
// charge.success return ok=false so the caller can acknowledge and drop them.
func ParseWebhook(body []byte) (Deposit, bool, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Deposit{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	if payload.Event != eventChargeSuccess {
		return Deposit{}, false, nil
	}
	userID, err := uuid.Parse(payload.Data.Metadata.UserID)
	if err != nil {
		return Deposit{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid metadata.userId")
	}
	return Deposit{
		Reference: payload.Data.Reference,
		UserID:    userID,
		Amount:    payload.Data.Amount,
		Status:    payload.Data.Status,
	}, true, nil
}
