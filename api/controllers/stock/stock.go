package stock

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/carehub-backend/api/middleware"
	"github.com/angelmondragon/carehub-backend/api/responses"
	"github.com/angelmondragon/carehub-backend/api/validators"
	internalstock "github.com/angelmondragon/carehub-backend/internal/stock"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
)

type createRequest struct {
	Name     string `json:"name" validate:"required,max=160"`
	Price    int64  `json:"price" validate:"gte=0"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type buyRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

// List returns one catalog, selected by the kind query parameter.
func List(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("kind"))
		if raw == "" {
			raw = string(enums.StockKindPharmacy)
		}
		kind, err := enums.ParseStockKind(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stock kind").
				WithDetails(map[string]any{"field": "kind"}))
			return
		}
		items, err := svc.ListItems(r.Context(), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// Create lists a new item in the caller's catalog. The catalog follows the
// caller's role.
func Create(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.CreateItem(r.Context(), internalstock.CreateItemInput{
			OwnerID:   userID,
			OwnerRole: role,
			Name:      validators.SanitizeString(body.Name, 160),
			Price:     body.Price,
			Quantity:  body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func AdjustQuantity(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body quantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.AdjustQuantity(r.Context(), internalstock.AdjustInput{
			ItemID:   itemID,
			OwnerID:  userID,
			Quantity: body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// Buy debits the caller and takes the units out of stock in one step.
func Buy(svc internalstock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body buyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BuyItem(r.Context(), internalstock.BuyInput{
			ItemID:   itemID,
			BuyerID:  userID,
			Quantity: body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
