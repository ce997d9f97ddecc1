package worker

// report_worker.go
// Processes till_report jobs from QueueReports: renders the reconciliation
// PDF of a closed session and queues it for email.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type TillReportPayload struct {
	SessionID uuid.UUID `json:"session_id"`
}

// ReportSource is satisfied by service.TillService.
type ReportSource interface {
	Report(ctx context.Context, sessionID uuid.UUID) (*dto.TillReportResponse, error)
}

type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ReportWorker struct {
	source      ReportSource
	emails      EmailQueue
	storeName   string
	storagePath string
	recipient   string
}

// NewReportWorker: an empty recipient only writes the PDF.
func NewReportWorker(source ReportSource, emails EmailQueue, storeName, storagePath, recipient string) *ReportWorker {
	return &ReportWorker{
		source:      source,
		emails:      emails,
		storeName:   storeName,
		storagePath: storagePath,
		recipient:   recipient,
	}
}

func (w *ReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload TillReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == uuid.Nil {
		return fmt.Errorf("till report payload %s: %w", raw, ErrPermanent)
	}

	report, err := w.source.Report(ctx, payload.SessionID)
	if errors.Is(err, apierror.ErrNotFound) {
		return fmt.Errorf("session %s: %v: %w", payload.SessionID, err, ErrPermanent)
	}
	if err != nil {
		return err
	}
	if report.Status != "closed" {
		return fmt.Errorf("session %s is still %s: %w", payload.SessionID, report.Status, ErrPermanent)
	}

	path, err := infra.GenerateTillReportPDF(report, w.storeName, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("session_id", report.SessionID).Str("path", path).Msg("report_worker: pdf written")

	if w.recipient == "" || w.emails == nil {
		return nil
	}
	return w.emails.EnqueueEmail(ctx, EmailJobPayload{
		ToEmail: w.recipient,
		Subject: fmt.Sprintf("%s: fechamento de caixa %s", w.storeName, closedDate(report)),
		Body:    reportBody(report),
		PDFPath: path,
	})
}

func closedDate(r *dto.TillReportResponse) string {
	if r.ClosedAt != nil {
		if t, err := time.Parse(time.RFC3339, *r.ClosedAt); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return r.OpenedAt
}

func reportBody(r *dto.TillReportResponse) string {
	body := fmt.Sprintf("Operador: %s\nTotal de vendas: %s\nDinheiro esperado na gaveta: %s\n",
		r.OperatorName, apierror.BRL(r.Sales.Total), apierror.BRL(r.CashInHand))
	if r.Deviation != nil {
		body += fmt.Sprintf("Contagem declarada: %s (diferença %s%%, %s)\n",
			apierror.BRL(r.Deviation.Declared), r.Deviation.Percent.StringFixed(2), r.Deviation.Class)
	}
	if r.Notes != nil {
		body += "Observações: " + *r.Notes + "\n"
	}
	return body + "\nO resumo completo está em anexo."
}
