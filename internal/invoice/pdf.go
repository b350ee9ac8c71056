// Package invoice рендерит счета по завершённым заказам в PDF.
package invoice

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Party сторона счёта.
type Party struct {
	Name  string
	Email string
}

// Document данные одного счёта.
type Document struct {
	Number      string
	IssuedAt    time.Time
	CompletedAt time.Time
	OrderID     string
	Title       string
	Creator     Party
	Editor      Party
	Amount      decimal.Decimal
	Currency    string
	VideoURL    string
}

// Render пишет счёт в w. Встроенные шрифты PDF покрывают только cp1252, поэтому
// пользовательский текст проходит через переводчик кодировки.
func Render(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+doc.Number, true)
	pdf.SetCreator("Cutflow", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Cutflow", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Invoice "+doc.Number, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Issued: "+doc.IssuedAt.Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	party := func(label string, p Party) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, label, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, tr(p.Name), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(p.Email), "", 1, "L", false, 0, "")
		pdf.Ln(3)
	}
	party("Billed to (creator)", doc.Creator)
	party("Service provider (editor)", doc.Editor)
	pdf.Ln(4)

	pdf.SetFillColor(235, 235, 235)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(130, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(130, 8, tr(truncate(doc.Title, 70)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, formatAmount(doc.Amount, doc.Currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(130, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(50, 8, formatAmount(doc.Amount, doc.Currency), "1", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Order: "+doc.OrderID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Completed: "+doc.CompletedAt.Format("02 Jan 2006 15:04 MST"), "", 1, "L", false, 0, "")
	if doc.VideoURL != "" {
		pdf.CellFormat(0, 5, "Published video: "+tr(doc.VideoURL), "", 1, "L", false, 0, doc.VideoURL)
	}
	pdf.Ln(4)
	pdf.MultiCell(0, 5, "Payment was held in escrow on the Cutflow platform and released to the editor on completion.", "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("invoice: рендер pdf: %w", err)
	}
	return nil
}

// Number строит номер счёта из даты завершения и идентификатора заказа.
func Number(orderID string, completedAt time.Time) string {
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("CF-%s-%s", completedAt.Format("20060102"), short)
}

func formatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
