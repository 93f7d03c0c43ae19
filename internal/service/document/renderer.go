package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// Renderer — встроенный рендерер предложения в одностраничный PDF.
type Renderer struct{}

// NewRenderer создаёт встроенный рендерер.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render строит PDF со шапкой, клиентом, позициями и итогами.
func (r *Renderer) Render(ctx context.Context, offer domain.Offer) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Offer "+offer.Number, true)
	pdf.SetCreationDate(offer.UpdatedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Offer "+offer.Number))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Status: %s", offer.Status)))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(offer.Customer.Name))
	pdf.Ln(6)
	if offer.Customer.Address != "" {
		pdf.MultiCell(0, 5, tr(offer.Customer.Address), "", "L", false)
	}
	pdf.Cell(0, 6, tr(offer.Customer.Email))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 7, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Unit", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range offer.ItemsInDisplayOrder() {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		pdf.CellFormat(90, 6, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatMinor(item.UnitPriceMinor, offer.Currency), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatMinor(item.TotalPriceMinor, offer.Currency), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	for _, line := range []struct {
		label string
		value int64
	}{
		{"Subtotal", offer.SubtotalMinor},
		{"Tax", offer.TaxMinor},
		{"Total", offer.TotalMinor},
	} {
		pdf.CellFormat(145, 6, line.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, formatMinor(line.value, offer.Currency), "", 1, "R", false, 0, "")
	}

	if offer.Notes != "" {
		pdf.Ln(6)
		pdf.MultiCell(0, 5, tr(offer.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatMinor(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
}

var _ domain.DocumentRenderer = (*Renderer)(nil)
