package emergency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/maps"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

const (
	msgDispatched    = "Emergency request handled successfully"
	msgNoLocation    = "Unable to find location for the given address"
	msgNoProvider    = "No emergency service provider available nearby."
	msgInsufficient  = "Insufficient funds. Required: %d, Available: %d"
	descCallerDebit  = "Emergency service request"
	descProviderPaid = "Emergency service response"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Geocoder is satisfied by *maps.Client.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*maps.GeocodeResult, error)
}

// Providers lists responders from the user mirror.
type Providers interface {
	ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error)
}

type Service interface {
	Request(ctx context.Context, input RequestInput) (*DispatchResult, error)
	ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]RecordDTO, error)
}

type ServiceParams struct {
	Repository  Repository
	Geocoder    Geocoder
	Providers   Providers
	Ledger      wallet.Ledger
	Tx          txRunner
	Outbox      outbox.Emitter
	ServiceCost int64
	Percentage  int
	Logger      *logger.Logger
}

type service struct {
	repo       Repository
	geocoder   Geocoder
	providers  Providers
	ledger     wallet.Ledger
	tx         txRunner
	outbox     outbox.Emitter
	cost       int64
	percentage int
	logg       *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("emergency repository required")
	case params.Geocoder == nil:
		return nil, fmt.Errorf("geocoder required")
	case params.Providers == nil:
		return nil, fmt.Errorf("provider directory required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.ServiceCost < 0:
		return nil, fmt.Errorf("emergency service cost must be non-negative")
	case params.Percentage < 0 || params.Percentage > 100:
		return nil, fmt.Errorf("emergency percentage must be within [0, 100]")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:       params.Repository,
		geocoder:   params.Geocoder,
		providers:  params.Providers,
		ledger:     params.Ledger,
		tx:         params.Tx,
		outbox:     params.Outbox,
		cost:       params.ServiceCost,
		percentage: params.Percentage,
		logg:       logg,
	}, nil
}

type candidate struct {
	user     models.User
	distance float64
}

func (s *service) Request(ctx context.Context, input RequestInput) (*DispatchResult, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithUserID(ctx, input.CallerID.String())

	geo, err := s.geocoder.Geocode(ctx, input.FullAddress())
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgNoLocation)
		}
		return nil, err
	}

	nearest, err := s.nearest(ctx, input.CallerID, geo.Location)
	if err != nil {
		return nil, err
	}

	record := &models.EmergencyRecord{
		CallerID:         input.CallerID,
		FacilityID:       nearest.user.ID,
		State:            strings.TrimSpace(input.State),
		Ward:             strings.TrimSpace(input.Ward),
		LGA:              strings.TrimSpace(input.LGA),
		Address:          strings.TrimSpace(input.Address),
		NatureOfIncident: strings.TrimSpace(input.NatureOfIncident),
		Latitude:         geo.Location.Latitude,
		Longitude:        geo.Location.Longitude,
		DistanceKM:       nearest.distance,
		ServiceAmount:    s.cost,
		PercentageAmount: s.percentage,
		CreatedAt:        time.Now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		if _, err := ledger.Ensure(ctx, input.CallerID); err != nil {
			return err
		}
		caller, err := ledger.Lock(ctx, input.CallerID)
		if err != nil {
			return err
		}
		if caller.Balance < s.cost {
			return pkgerrors.Newf(pkgerrors.CodeInsufficientFunds, msgInsufficient, s.cost, caller.Balance)
		}
		if s.cost > 0 {
			payload := map[string]any{"facilityId": nearest.user.ID.String()}
			if _, err := ledger.Debit(ctx, input.CallerID, wallet.Entry{
				Type:        enums.TransactionEmergencyPayment,
				Amount:      s.cost,
				Description: descCallerDebit,
				Payload:     payload,
			}); err != nil {
				return err
			}
			if _, err := ledger.Credit(ctx, nearest.user.ID, wallet.Entry{
				Type:        enums.TransactionEmergencyIncome,
				Amount:      s.cost,
				Description: descProviderPaid,
				Payload:     map[string]any{"callerId": input.CallerID.String()},
			}); err != nil {
				return err
			}
		}
		if err := s.repo.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEmergencyDispatched,
			AggregateType: enums.AggregateEmergency,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{UserID: input.CallerID},
			Data: payloads.EmergencyDispatchedEvent{
				RecordID:         record.ID,
				CallerID:         input.CallerID,
				FacilityID:       nearest.user.ID,
				NatureOfIncident: record.NatureOfIncident,
				Address:          geo.FormattedAddress,
				Latitude:         record.Latitude,
				Longitude:        record.Longitude,
				DistanceKM:       record.DistanceKM,
				ServiceAmount:    s.cost,
			},
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, wrapStorage(err, "dispatch emergency")
	}

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"facility_id": nearest.user.ID.String(),
		"distance_km": nearest.distance,
	}), "emergency dispatched")

	return &DispatchResult{
		Message:          msgDispatched,
		RecordID:         record.ID,
		IncidentLocation: Location{Latitude: record.Latitude, Longitude: record.Longitude},
		Provider: ProviderDTO{
			ID:         nearest.user.ID,
			Username:   nearest.user.Username,
			DistanceKM: nearest.distance,
		},
		AmountCharged: s.cost,
	}, nil
}

// nearest picks the closest located responder. Ties keep the earlier row,
// which ListByRole orders online first.
func (s *service) nearest(ctx context.Context, callerID uuid.UUID, at maps.LatLng) (*candidate, error) {
	providers, err := s.providers.ListByRole(ctx, enums.RoleEmergencyServices)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list emergency providers")
	}
	var best *candidate
	for _, p := range providers {
		if p.Latitude == nil || p.Longitude == nil || p.ID == callerID {
			continue
		}
		d := maps.DistanceKM(at, maps.LatLng{Latitude: *p.Latitude, Longitude: *p.Longitude})
		if best == nil || d < best.distance {
			best = &candidate{user: p, distance: d}
		}
	}
	if best == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgNoProvider)
	}
	return best, nil
}

func (s *service) ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]RecordDTO, error) {
	if facilityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "facility id is required")
	}
	rows, err := s.repo.ListByFacility(ctx, facilityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list emergency records")
	}
	out := make([]RecordDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRecordDTO(r))
	}
	return out, nil
}

func validate(input RequestInput) error {
	if input.CallerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "caller id is required")
	}
	fields := map[string]string{
		"natureOfIncident": input.NatureOfIncident,
		"address":          input.Address,
		"state":            input.State,
		"lga":              input.LGA,
		"ward":             input.Ward,
	}
	missing := make(map[string]string)
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing[name] = "required"
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "incident details are incomplete").WithDetails(missing)
	}
	return nil
}

func wrapStorage(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
