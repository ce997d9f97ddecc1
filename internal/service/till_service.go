package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/infra"
	"imperio/internal/model"
	"imperio/internal/notify"
	"imperio/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Operator identifies who is acting at the till (from the JWT).
type Operator struct {
	ID   string
	Name string
}

// ReportQueue schedules the reconciliation PDF/e-mail for a closed session.
type ReportQueue interface {
	EnqueueTillReport(ctx context.Context, sessionID uuid.UUID) error
}

type TillService interface {
	Open(ctx context.Context, op Operator, req dto.OpenTillRequest) (*dto.TillReportResponse, error)
	RecordMovement(ctx context.Context, sessionID uuid.UUID, req dto.MovementRequest) (*dto.MovementResponse, error)
	// RecordSaleProceeds books a paid order inside the caller's transaction.
	// Idempotent per order: a second call returns the existing movement.
	RecordSaleProceeds(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, orderID int64, total decimal.Decimal, method model.PaymentMethod) (*model.CashMovement, error)
	Close(ctx context.Context, sessionID uuid.UUID, req dto.CloseTillRequest) (*dto.TillReportResponse, error)

	// EnsureOpen locks the session row in tx and fails unless it is open.
	EnsureOpen(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) error
	// CurrentSessionID returns the open session, or ErrSessionNotOpen.
	CurrentSessionID(ctx context.Context, tx *gorm.DB) (uuid.UUID, error)
	Current(ctx context.Context) (*dto.TillReportResponse, error)
	Report(ctx context.Context, sessionID uuid.UUID) (*dto.TillReportResponse, error)
	Movements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error)
	History(ctx context.Context, filter dto.TillHistoryFilter) (*dto.TillHistoryResponse, error)
}

type tillService struct {
	repo    repository.TillRepository
	events  notify.Publisher
	reports ReportQueue
	metrics *infra.Metrics
	now     func() time.Time
}

// NewTillService: reports and metrics may be nil.
func NewTillService(repo repository.TillRepository, events notify.Publisher, reports ReportQueue, metrics *infra.Metrics) TillService {
	if events == nil {
		events = notify.Noop{}
	}
	return &tillService{repo: repo, events: events, reports: reports, metrics: metrics, now: time.Now}
}

// ── Open ──────────────────────────────────────────────────────────────────────
// The single-open-session rule lives in the store (partial unique index);
// a concurrent second open loses the INSERT race and gets ErrDuplicate.

func (s *tillService) Open(ctx context.Context, op Operator, req dto.OpenTillRequest) (*dto.TillReportResponse, error) {
	if req.OpeningFloat.IsNegative() {
		return nil, &apierror.AmountError{Reason: "o troco inicial não pode ser negativo"}
	}

	var sess *model.TillSession
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess = &model.TillSession{
			ID:           uuid.New(),
			OperatorID:   op.ID,
			OperatorName: op.Name,
			OpeningFloat: req.OpeningFloat.Round(2),
			Status:       model.SessionOpen,
			OpenedAt:     s.now().UTC(),
		}
		return s.repo.CreateSession(ctx, tx, sess)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apierror.ErrSessionAlreadyOpen
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sess.ID.String()).Str("operator", op.ID).
		Str("opening_float", sess.OpeningFloat.StringFixed(2)).Msg("till: session opened")
	s.metrics.TillSession("opened")
	notify.Emit(ctx, s.events, notify.EntityTillSession, sess.ID.String(), notify.KindOpened)

	return buildTillReport(sess, Reconcile(sess.OpeningFloat, nil), nil), nil
}

// ── Movements ─────────────────────────────────────────────────────────────────
// Movements are immutable. The session row is locked for the whole append so
// a concurrent Close either sees the movement or the append sees the close.

func (s *tillService) RecordMovement(ctx context.Context, sessionID uuid.UUID, req dto.MovementRequest) (*dto.MovementResponse, error) {
	kind, ok := model.ParseManualMovementKind(req.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: tipo de movimento %q (use sangria ou suprimento)", apierror.ErrInvalidInput, req.Kind)
	}
	if !req.Amount.IsPositive() {
		return nil, &apierror.AmountError{Reason: "o valor da movimentação precisa ser maior que zero"}
	}

	var mv *model.CashMovement
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sess, err := s.lockOpen(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		mv, err = s.appendLocked(ctx, tx, sess, kind, req.Amount, strings.TrimSpace(req.Reason), model.PaymentCash, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID.String()).Str("kind", string(kind)).
		Str("amount", mv.Amount.StringFixed(2)).Msg("till: movement recorded")
	s.metrics.TillMovement(string(kind))
	notify.Emit(ctx, s.events, notify.EntityCashMovement, mv.ID.String(), notify.KindCreated)

	resp := toMovementResponse(*mv)
	return &resp, nil
}

func (s *tillService) RecordSaleProceeds(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, orderID int64, total decimal.Decimal, method model.PaymentMethod) (*model.CashMovement, error) {
	existing, err := s.repo.FindSaleProceeds(ctx, tx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apierror.ErrNotFound) {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("sale proceeds %s: %w", total, apierror.ErrInvalidAmount)
	}

	sess, err := s.lockOpen(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	mv, err := s.appendLocked(ctx, tx, sess, model.MovementSaleProceeds, total, fmt.Sprintf("pedido #%d", orderID), method, &orderID)
	if err != nil {
		return nil, err
	}
	s.metrics.TillMovement(string(model.MovementSaleProceeds))
	return mv, nil
}

func (s *tillService) EnsureOpen(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) error {
	_, err := s.lockOpen(ctx, tx, sessionID)
	return err
}

func (s *tillService) lockOpen(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*model.TillSession, error) {
	sess, err := s.repo.LockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionOpen {
		return nil, apierror.ErrSessionNotOpen
	}
	return sess, nil
}

// appendLocked must run with sess locked in tx.
func (s *tillService) appendLocked(ctx context.Context, tx *gorm.DB, sess *model.TillSession, kind model.MovementKind, amount decimal.Decimal, reason string, method model.PaymentMethod, orderID *int64) (*model.CashMovement, error) {
	sess.MovementCount++
	mv := &model.CashMovement{
		ID:            uuid.New(),
		SessionID:     sess.ID,
		Seq:           sess.MovementCount,
		Kind:          kind,
		Amount:        amount.Round(2),
		Reason:        reason,
		PaymentMethod: method,
		OrderID:       orderID,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.AppendMovement(ctx, tx, mv); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSession(ctx, tx, sess); err != nil {
		return nil, err
	}
	return mv, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Freezes the reconciliation on the session. With a declared count (blind
// count: the operator never sees the expected figure first) the deviation is
// classified; a critical deviation needs supervisor notes.

func (s *tillService) Close(ctx context.Context, sessionID uuid.UUID, req dto.CloseTillRequest) (*dto.TillReportResponse, error) {
	if req.DeclaredCash != nil && req.DeclaredCash.IsNegative() {
		return nil, &apierror.AmountError{Reason: "o valor contado não pode ser negativo"}
	}
	notes := trimmedOrNil(req.Notes)

	var (
		sess *model.TillSession
		rec  Reconciliation
		dev  *Deviation
	)
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		sess, err = s.lockOpen(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		movs, err := s.repo.ListMovements(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		rec = Reconcile(sess.OpeningFloat, movs)

		dev = nil
		if req.DeclaredCash != nil {
			d := assessDeviation(*req.DeclaredCash, rec.CashInHand)
			if d.Class == DeviationCritical && notes == nil {
				return apierror.ErrNotesRequired
			}
			dev = &d
		}

		freeze(sess, rec, dev, notes, s.now().UTC())
		return s.repo.UpdateSession(ctx, tx, sess)
	})
	if err != nil {
		return nil, err
	}

	ev := log.Info().Str("session_id", sessionID.String()).
		Str("cash_in_hand", rec.CashInHand.StringFixed(2)).
		Str("sales_total", rec.SalesTotal.StringFixed(2))
	if dev != nil {
		ev = ev.Str("deviation", dev.Amount.StringFixed(2)).Str("class", dev.Class)
		s.metrics.TillSession("deviation_" + dev.Class)
	}
	ev.Msg("till: session closed")
	s.metrics.TillSession("closed")
	notify.Emit(ctx, s.events, notify.EntityTillSession, sessionID.String(), notify.KindClosed)

	if s.reports != nil {
		if err := s.reports.EnqueueTillReport(ctx, sessionID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("till: report job not enqueued")
		}
	}

	return buildTillReport(sess, rec, dev), nil
}

func freeze(sess *model.TillSession, rec Reconciliation, dev *Deviation, notes *string, at time.Time) {
	pin := func(d decimal.Decimal) *decimal.Decimal { return &d }

	sess.Status = model.SessionClosed
	sess.ClosedAt = &at
	sess.CashInHand = pin(rec.CashInHand)
	sess.SalesCash = pin(rec.Sales[model.PaymentCash])
	sess.SalesPix = pin(rec.Sales[model.PaymentPix])
	sess.SalesDebit = pin(rec.Sales[model.PaymentDebit])
	sess.SalesCredit = pin(rec.Sales[model.PaymentCredit])
	sess.SalesTotal = pin(rec.SalesTotal)
	sess.Withdrawals = pin(rec.Withdrawals)
	sess.Deposits = pin(rec.Deposits)
	sess.Notes = notes
	if dev != nil {
		class := dev.Class
		sess.DeclaredCash = pin(dev.Declared)
		sess.Deviation = pin(dev.Amount)
		sess.DeviationPct = pin(dev.Percent)
		sess.DeviationClass = &class
	}
}

// frozen rebuilds the reconciliation of a closed session from its own
// columns, never from the movements.
func frozen(sess *model.TillSession) (Reconciliation, *Deviation) {
	val := func(d *decimal.Decimal) decimal.Decimal {
		if d == nil {
			return decimal.Zero
		}
		return *d
	}
	rec := Reconciliation{
		OpeningFloat: sess.OpeningFloat,
		Withdrawals:  val(sess.Withdrawals),
		Deposits:     val(sess.Deposits),
		SalesTotal:   val(sess.SalesTotal),
		CashInHand:   val(sess.CashInHand),
		Sales: map[model.PaymentMethod]decimal.Decimal{
			model.PaymentCash:   val(sess.SalesCash),
			model.PaymentPix:    val(sess.SalesPix),
			model.PaymentDebit:  val(sess.SalesDebit),
			model.PaymentCredit: val(sess.SalesCredit),
		},
	}
	var dev *Deviation
	if sess.DeclaredCash != nil && sess.DeviationClass != nil {
		dev = &Deviation{
			Declared: *sess.DeclaredCash,
			Amount:   val(sess.Deviation),
			Percent:  val(sess.DeviationPct),
			Class:    *sess.DeviationClass,
		}
	}
	return rec, dev
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *tillService) CurrentSessionID(ctx context.Context, tx *gorm.DB) (uuid.UUID, error) {
	sess, err := s.repo.FindOpenSession(ctx, tx)
	if errors.Is(err, apierror.ErrNotFound) {
		return uuid.Nil, apierror.ErrSessionNotOpen
	}
	if err != nil {
		return uuid.Nil, err
	}
	return sess.ID, nil
}

func (s *tillService) Current(ctx context.Context) (*dto.TillReportResponse, error) {
	sess, err := s.repo.FindOpenSession(ctx, nil)
	if errors.Is(err, apierror.ErrNotFound) {
		return nil, apierror.ErrSessionNotOpen
	}
	if err != nil {
		return nil, err
	}
	return s.report(ctx, sess)
}

func (s *tillService) Report(ctx context.Context, sessionID uuid.UUID) (*dto.TillReportResponse, error) {
	sess, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.report(ctx, sess)
}

// report is live for an open session and frozen for a closed one.
func (s *tillService) report(ctx context.Context, sess *model.TillSession) (*dto.TillReportResponse, error) {
	if sess.Status == model.SessionClosed {
		rec, dev := frozen(sess)
		return buildTillReport(sess, rec, dev), nil
	}
	movs, err := s.repo.ListMovements(ctx, nil, sess.ID)
	if err != nil {
		return nil, err
	}
	return buildTillReport(sess, Reconcile(sess.OpeningFloat, movs), nil), nil
}

func (s *tillService) Movements(ctx context.Context, sessionID uuid.UUID) ([]dto.MovementResponse, error) {
	if _, err := s.repo.FindSessionByID(ctx, sessionID); err != nil {
		return nil, err
	}
	movs, err := s.repo.ListMovements(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, toMovementResponse(m))
	}
	return out, nil
}

func (s *tillService) History(ctx context.Context, filter dto.TillHistoryFilter) (*dto.TillHistoryResponse, error) {
	sessions, total, err := s.repo.ListSessions(ctx, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.TillReportResponse, 0, len(sessions))
	for i := range sessions {
		r, err := s.report(ctx, &sessions[i])
		if err != nil {
			return nil, err
		}
		data = append(data, *r)
	}
	return &dto.TillHistoryResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func buildTillReport(sess *model.TillSession, rec Reconciliation, dev *Deviation) *dto.TillReportResponse {
	r := &dto.TillReportResponse{
		SessionID:    sess.ID.String(),
		OperatorID:   sess.OperatorID,
		OperatorName: sess.OperatorName,
		Status:       string(sess.Status),
		OpeningFloat: sess.OpeningFloat,
		Withdrawals:  rec.Withdrawals,
		Deposits:     rec.Deposits,
		Sales: dto.SalesByMethod{
			Cash:   rec.Sales[model.PaymentCash],
			Pix:    rec.Sales[model.PaymentPix],
			Debit:  rec.Sales[model.PaymentDebit],
			Credit: rec.Sales[model.PaymentCredit],
			Total:  rec.SalesTotal,
		},
		CashInHand:    rec.CashInHand,
		Notes:         sess.Notes,
		MovementCount: sess.MovementCount,
		OpenedAt:      formatTime(sess.OpenedAt),
		ClosedAt:      formatTimePtr(sess.ClosedAt),
	}
	if dev != nil {
		r.Deviation = &dto.DeviationResponse{
			Declared: dev.Declared,
			Amount:   dev.Amount,
			Percent:  dev.Percent,
			Class:    dev.Class,
		}
	}
	return r
}

func toMovementResponse(m model.CashMovement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:            m.ID.String(),
		Seq:           m.Seq,
		Kind:          string(m.Kind),
		Amount:        m.Amount,
		Reason:        m.Reason,
		PaymentMethod: string(m.PaymentMethod),
		OrderID:       m.OrderID,
		CreatedAt:     formatTime(m.CreatedAt),
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
