package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/users"
	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/carehub-backend/pkg/db/types"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Directory resolves practitioners from the user mirror.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error)
}

// Service books consultations and moves their money.
type Service interface {
	CreateMedicalIssue(ctx context.Context, name string, price int64) (*MedicalIssueDTO, error)
	ListMedicalIssues(ctx context.Context) ([]MedicalIssueDTO, error)
	Book(ctx context.Context, input BookInput) (*SessionDTO, error)
	BookWithAnyPractitioner(ctx context.Context, input BookAnyInput) (*SessionDTO, error)
	MatchPractitioners(ctx context.Context, userID uuid.UUID, issueIDs []uuid.UUID) (*MatchResult, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*SessionDTO, error)
	SubmitReview(ctx context.Context, input ReviewInput) (*SessionWithReview, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]MonthGroup, error)
	PendingForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]SessionDTO, error)
	WithReview(ctx context.Context, sessionID, actorID uuid.UUID) (*SessionWithReview, error)
}

type ServiceParams struct {
	Repository Repository
	Directory  Directory
	Ledger     wallet.Ledger
	Tx         txRunner
	Outbox     outbox.Emitter
	Logger     *logger.Logger
}

type service struct {
	repo      Repository
	directory Directory
	ledger    wallet.Ledger
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("sessions repository required")
	case params.Directory == nil:
		return nil, fmt.Errorf("user directory required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repository,
		directory: params.Directory,
		ledger:    params.Ledger,
		tx:        params.Tx,
		outbox:    params.Outbox,
		logg:      logg,
	}, nil
}

func (s *service) CreateMedicalIssue(ctx context.Context, name string, price int64) (*MedicalIssueDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	issue := &models.MedicalIssue{Name: name, Price: price}
	if err := s.repo.CreateIssue(ctx, issue); err != nil {
		return nil, wrapStorage(err, "create medical issue")
	}
	return &MedicalIssueDTO{ID: issue.ID, Name: issue.Name, Price: issue.Price}, nil
}

func (s *service) ListMedicalIssues(ctx context.Context) ([]MedicalIssueDTO, error) {
	rows, err := s.repo.ListIssues(ctx)
	if err != nil {
		return nil, wrapStorage(err, "list medical issues")
	}
	out := make([]MedicalIssueDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, MedicalIssueDTO{ID: r.ID, Name: r.Name, Price: r.Price})
	}
	return out, nil
}

// Book debits the client at booking time. The practitioner is paid when the
// session completes and the client is refunded if it is cancelled.
func (s *service) Book(ctx context.Context, input BookInput) (*SessionDTO, error) {
	if input.UserID == uuid.Nil || input.PractitionerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and practitioner id are required")
	}
	if _, err := s.practitioner(ctx, input.PractitionerID); err != nil {
		return nil, err
	}
	issues, price, err := s.pricedIssues(ctx, input.MedicalIssueIDs)
	if err != nil {
		return nil, err
	}

	var created models.Session
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		if _, err := ledger.Ensure(ctx, input.UserID); err != nil {
			return err
		}
		w, err := ledger.Lock(ctx, input.UserID)
		if err != nil {
			return err
		}
		if w.Balance < price {
			return insufficient(price, w.Balance)
		}

		created = models.Session{
			UserID:          input.UserID,
			PractitionerID:  input.PractitionerID,
			MedicalIssueIDs: issueIDs(issues),
			Price:           price,
			Status:          enums.SessionStatusPending,
			PaymentMode:     enums.PaymentModeEscrow,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &created); err != nil {
			return wrapStorage(err, "create session")
		}
		if price == 0 {
			return nil
		}
		_, err = ledger.Debit(ctx, input.UserID, wallet.Entry{
			Type:        enums.TransactionConsultationPayment,
			Amount:      price,
			Description: "Consultation booking: " + issueNames(issues),
			Payload:     map[string]any{"sessionId": created.ID.String(), "practitionerId": input.PractitionerID.String()},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := toSessionDTO(&created)
	return &dto, nil
}

// BookWithAnyPractitioner only checks funds; the transfer happens on review.
func (s *service) BookWithAnyPractitioner(ctx context.Context, input BookAnyInput) (*SessionDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	match, err := s.MatchPractitioners(ctx, input.UserID, input.MedicalIssueIDs)
	if err != nil {
		return nil, err
	}

	created := models.Session{
		UserID:          input.UserID,
		PractitionerID:  match.Practitioners[0].ID,
		MedicalIssueIDs: dbtypes.UUIDArray(match.IssueIDs),
		Price:           match.Cost,
		Status:          enums.SessionStatusPending,
		PaymentMode:     enums.PaymentModeOnReview,
	}
	if err := s.repo.Create(ctx, &created); err != nil {
		return nil, wrapStorage(err, "create session")
	}
	dto := toSessionDTO(&created)
	return &dto, nil
}

// MatchPractitioners returns practitioners treating any of the issues, online first.
func (s *service) MatchPractitioners(ctx context.Context, userID uuid.UUID, requested []uuid.UUID) (*MatchResult, error) {
	issues, cost, err := s.pricedIssues(ctx, requested)
	if err != nil {
		return nil, err
	}
	wanted := []uuid.UUID(issueIDs(issues))
	candidates, err := s.directory.ListByRole(ctx, enums.RoleMedicalPractitioner)
	if err != nil {
		return nil, wrapStorage(err, "list practitioners")
	}
	matched := make([]users.PractitionerDTO, 0)
	for i := range candidates {
		if candidates[i].Specialties.Intersects(wanted) {
			matched = append(matched, users.ToPractitionerDTO(&candidates[i]))
		}
	}
	if len(matched) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No practitioner available for the selected medical issues.")
	}

	w, err := s.ledger.Ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Balance < cost {
		return nil, insufficient(cost, w.Balance)
	}
	return &MatchResult{Practitioners: matched, Cost: cost, IssueIDs: wanted}, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*SessionDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid session status %q", input.Status)
	}

	var out models.Session
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sessions := s.repo.WithTx(tx)
		session, err := s.load(ctx, sessions, input.SessionID)
		if err != nil {
			return err
		}
		if session.UserID != input.ActorID && session.PractitionerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "You are not a participant in this session.")
		}
		if session.Status == input.Status {
			out = *session
			return nil
		}
		if !canTransition(session.Status, input.Status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "Cannot change session status from %s to %s.", session.Status, input.Status)
		}
		if err := sessions.TransitionStatus(ctx, session.ID, session.Status, input.Status); err != nil {
			if errors.Is(err, ErrStaleStatus) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "Session status changed, please retry.")
			}
			return wrapStorage(err, "update session status")
		}
		if input.Status == enums.SessionStatusCompleted || input.Status == enums.SessionStatusCancelled {
			if err := s.settle(ctx, tx, session, input.Status); err != nil {
				return err
			}
		}
		reloaded, err := s.load(ctx, sessions, session.ID)
		if err != nil {
			return err
		}
		out = *reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toSessionDTO(&out)
	return &dto, nil
}

// SubmitReview stores the practitioner's review and settles the session.
func (s *service) SubmitReview(ctx context.Context, input ReviewInput) (*SessionWithReview, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	var (
		out    models.Session
		review models.SessionReview
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sessions := s.repo.WithTx(tx)
		session, err := s.load(ctx, sessions, input.SessionID)
		if err != nil {
			return err
		}
		if session.PractitionerID != input.PractitionerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Only the session's practitioner can submit a review.")
		}
		if session.ReviewSubmitted {
			return pkgerrors.New(pkgerrors.CodeConflict, "Review already submitted for this session.")
		}
		if session.Status == enums.SessionStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot review a cancelled session.")
		}

		review = models.SessionReview{
			SessionID:      session.ID,
			UserID:         session.UserID,
			PractitionerID: session.PractitionerID,
			Rating:         input.Rating,
			Comment:        strings.TrimSpace(input.Comment),
		}
		if err := sessions.InsertReview(ctx, &review); err != nil {
			if errors.Is(err, ErrReviewExists) {
				return pkgerrors.New(pkgerrors.CodeConflict, "Review already submitted for this session.")
			}
			return wrapStorage(err, "store review")
		}
		if err := s.settle(ctx, tx, session, enums.SessionStatusCompleted); err != nil {
			return err
		}
		if err := sessions.MarkReviewed(ctx, session.ID); err != nil {
			if errors.Is(err, ErrReviewExists) {
				return pkgerrors.New(pkgerrors.CodeConflict, "Review already submitted for this session.")
			}
			return wrapStorage(err, "mark session reviewed")
		}
		reloaded, err := s.load(ctx, sessions, session.ID)
		if err != nil {
			return err
		}
		out = *reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SessionWithReview{Session: toSessionDTO(&out), Review: toReviewDTO(&review)}, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]MonthGroup, error) {
	rows, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, wrapStorage(err, "list sessions")
	}
	return groupByMonth(rows), nil
}

func (s *service) PendingForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]SessionDTO, error) {
	rows, err := s.repo.ListPendingForPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, wrapStorage(err, "list pending sessions")
	}
	out := make([]SessionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toSessionDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) WithReview(ctx context.Context, sessionID, actorID uuid.UUID) (*SessionWithReview, error) {
	session, err := s.load(ctx, s.repo, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != actorID && session.PractitionerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You are not a participant in this session.")
	}
	out := &SessionWithReview{Session: toSessionDTO(session)}
	review, err := s.repo.FindReview(ctx, sessionID)
	switch {
	case err == nil:
		out.Review = toReviewDTO(review)
	case !db.IsNotFound(err):
		return nil, wrapStorage(err, "load review")
	}
	return out, nil
}

// settle moves the session money once. Escrow sessions release to the
// practitioner or refund the client; on_review sessions transfer on completion
// and move nothing when cancelled.
func (s *service) settle(ctx context.Context, tx *gorm.DB, session *models.Session, outcome enums.SessionStatus) error {
	if session.Price == 0 {
		return nil
	}
	if session.PaymentMode == enums.PaymentModeOnReview && outcome == enums.SessionStatusCancelled {
		return nil
	}
	claimed, err := s.repo.WithTx(tx).ClaimSettlement(ctx, session.ID)
	if err != nil {
		return wrapStorage(err, "claim settlement")
	}
	if !claimed {
		return nil
	}

	ledger := s.ledger.WithTx(tx)
	payload := map[string]any{"sessionId": session.ID.String()}
	refunded := false
	switch {
	case session.PaymentMode == enums.PaymentModeOnReview:
		if _, err := ledger.Ensure(ctx, session.PractitionerID); err != nil {
			return err
		}
		_, err = ledger.Transfer(ctx, wallet.TransferInput{
			FromUserID:  session.UserID,
			ToUserID:    session.PractitionerID,
			Amount:      session.Price,
			Description: "Consultation session payment",
			Payload:     payload,
		})
	case outcome == enums.SessionStatusCompleted:
		_, err = ledger.Credit(ctx, session.PractitionerID, wallet.Entry{
			Type:        enums.TransactionSessionIncome,
			Amount:      session.Price,
			Description: "Session income",
			Payload:     payload,
		})
	default:
		refunded = true
		_, err = ledger.Credit(ctx, session.UserID, wallet.Entry{
			Type:        enums.TransactionRefund,
			Amount:      session.Price,
			Description: "Session cancelled, booking refunded",
			Payload:     payload,
		})
	}
	if err != nil {
		return err
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSessionSettled,
		AggregateType: enums.AggregateSession,
		AggregateID:   session.ID,
		Data: payloads.SessionSettledEvent{
			SessionID:      session.ID,
			ClientID:       session.UserID,
			PractitionerID: session.PractitionerID,
			Amount:         session.Price,
			Status:         outcome,
			PaymentMode:    session.PaymentMode,
			Refunded:       refunded,
		},
		OccurredAt: time.Now().UTC(),
	})
}

func (s *service) load(ctx context.Context, sessions Repository, id uuid.UUID) (*models.Session, error) {
	session, err := sessions.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Session not found.")
		}
		return nil, wrapStorage(err, "load session")
	}
	return session, nil
}

func (s *service) practitioner(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.directory.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Practitioner not found.")
		}
		return nil, wrapStorage(err, "load practitioner")
	}
	if user.Role != enums.RoleMedicalPractitioner {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Practitioner not found.")
	}
	return user, nil
}

// pricedIssues loads every requested issue and sums the price. Unknown ids fail.
func (s *service) pricedIssues(ctx context.Context, ids []uuid.UUID) ([]models.MedicalIssue, int64, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one medical issue is required")
	}
	issues, err := s.repo.FindIssues(ctx, ids)
	if err != nil {
		return nil, 0, wrapStorage(err, "load medical issues")
	}
	if len(issues) != len(ids) {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "Medical issue not found.")
	}
	var total int64
	for _, issue := range issues {
		total += issue.Price
	}
	return issues, total, nil
}

func insufficient(required, available int64) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientFunds, "Insufficient wallet funds. Required: %d, Available: %d", required, available)
}

func issueNames(issues []models.MedicalIssue) string {
	names := make([]string, 0, len(issues))
	for _, issue := range issues {
		names = append(names, issue.Name)
	}
	return strings.Join(names, ", ")
}

func issueIDs(issues []models.MedicalIssue) dbtypes.UUIDArray {
	out := make(dbtypes.UUIDArray, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.ID)
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func wrapStorage(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
