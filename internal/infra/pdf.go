package infra

// pdf.go: till reconciliation summary using go-pdf/fpdf.
// One A5 page per closed session with:
//   - Store name header and session period
//   - Opening float, sales per payment method, withdrawals and deposits
//   - Expected cash in hand
//   - Blind count deviation and supervisor notes, when present
//
// The output file is saved to storagePath/caixa_{sessionID}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"imperio/internal/apierror"
	"imperio/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateTillReportPDF writes the reconciliation summary of a session and
// returns the path of the generated file.
func GenerateTillReportPDF(report *dto.TillReportResponse, storeName, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	filePath := filepath.Join(storagePath, fmt.Sprintf("caixa_%s.pdf", report.SessionID))

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20
	labelW := contentW * 0.65
	valueW := contentW - labelW

	row := func(label string, value decimal.Decimal) {
		pdf.CellFormat(labelW, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 6, brl(value), "", 1, "R", false, 0, "")
	}
	rule := func() {
		pdf.Ln(1)
		pdf.Line(10, pdf.GetY(), pageW-10, pdf.GetY())
		pdf.Ln(2)
	}

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, tr(storeName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, tr("Fechamento de caixa"), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, tr("Sessão: "+report.SessionID), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr("Operador: "+report.OperatorName), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr("Abertura: "+report.OpenedAt), "", 1, "L", false, 0, "")
	if report.ClosedAt != nil {
		pdf.CellFormat(contentW, 4, tr("Fechamento: "+*report.ClosedAt), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(contentW, 4, tr(fmt.Sprintf("Movimentos: %d", report.MovementCount)), "", 1, "L", false, 0, "")
	rule()

	// ── Sales ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 6, tr("Vendas por forma de pagamento"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	row("Dinheiro", report.Sales.Cash)
	row("Pix", report.Sales.Pix)
	row("Débito", report.Sales.Debit)
	row("Crédito", report.Sales.Credit)
	pdf.SetFont("Helvetica", "B", 9)
	row("Total de vendas", report.Sales.Total)
	rule()

	// ── Cash drawer ──────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 9)
	row("Fundo de troco", report.OpeningFloat)
	row("Vendas em dinheiro", report.Sales.Cash)
	row("Sangrias", report.Withdrawals.Neg())
	row("Suprimentos", report.Deposits)
	pdf.SetFont("Helvetica", "B", 10)
	row("Dinheiro esperado na gaveta", report.CashInHand)

	// ── Blind count ──────────────────────────────────────────────────────────
	if d := report.Deviation; d != nil {
		rule()
		pdf.SetFont("Helvetica", "", 9)
		row("Contagem declarada", d.Declared)
		row("Diferença", d.Amount)
		pdf.CellFormat(labelW, 6, tr("Classificação"), "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 6, tr(fmt.Sprintf("%s (%s%%)", deviationLabel(d.Class), d.Percent.StringFixed(2))), "", 1, "R", false, 0, "")
	}
	if report.Notes != nil {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, tr("Observações: "+*report.Notes), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func brl(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + apierror.BRL(d.Abs())
	}
	return apierror.BRL(d)
}

func deviationLabel(class string) string {
	switch class {
	case "warning":
		return "atenção"
	case "critical":
		return "crítica"
	default:
		return "normal"
	}
}
