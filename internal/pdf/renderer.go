// Package pdf renders quote documents to PDF.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quoteforge/quoting/internal/models"
)

// FormatMoney formats an amount as "CUR 1,234.56", rounding half up to
// two decimals.
func FormatMoney(amount decimal.Decimal, currency string) string {
	fixed := amount.Round(2).StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}
	intPart, fracPart, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + fracPart
	if neg {
		out = "-" + out
	}
	return currency + " " + out
}

type Renderer struct {
	outputDir string
	log       *logrus.Entry
}

func NewRenderer(outputDir string) *Renderer {
	return &Renderer{
		outputDir: outputDir,
		log:       logrus.WithField("component", "pdf"),
	}
}

// Render produces the PDF bytes for a quote document.
func (r *Renderer) Render(doc *models.QuoteDoc) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5,
			fmt.Sprintf("Generated on %s", time.Now().Format("2006-01-02 15:04:05")),
			"", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()

	r.header(pdf)
	r.metaPanel(pdf, doc)
	r.billShip(pdf, doc)
	r.summaryBand(pdf, doc)
	r.lineTable(pdf, doc)
	r.footer(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quote %d: %w", doc.QuoteID, err)
	}
	return buf.Bytes(), nil
}

// RenderToFile writes quote_{id}.pdf under the renderer's output dir and
// returns the path.
func (r *Renderer) RenderToFile(doc *models.QuoteDoc) (string, error) {
	data, err := r.Render(doc)
	if err != nil {
		return "", err
	}
	return r.WriteFile(doc.QuoteID, data)
}

// WriteFile persists already-rendered PDF bytes for a quote.
func (r *Renderer) WriteFile(quoteID uint, data []byte) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(r.outputDir, fmt.Sprintf("quote_%d.pdf", quoteID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	r.log.WithFields(logrus.Fields{"quote_id": quoteID, "path": path}).Info("quote pdf written")
	return path, nil
}

func (r *Renderer) header(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, "Sales Quoting Engine", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{
		"123 Business Street, Suite 100",
		"City, State 12345",
		"Phone: (555) 123-4567  |  quotes@company.com",
	} {
		pdf.CellFormat(0, 5, line, "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)
}

func (r *Renderer) metaPanel(pdf *gofpdf.Fpdf, doc *models.QuoteDoc) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "QUOTE SUMMARY", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)

	dash := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("2006-01-02")
	}
	term := "-"
	if doc.TermMonths != nil {
		term = fmt.Sprintf("%d", *doc.TermMonths)
	}
	rows := [][4]string{
		{"Quote #:", fmt.Sprintf("Q-%04d", doc.QuoteID), "Quote Date:", doc.QuoteDate.Format("2006-01-02")},
		{"Valid Until:", dash(doc.ValidUntil), "Term (months):", term},
		{"Pricebook:", doc.PricebookName, "Currency:", doc.Currency},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(30, 6, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(55, 6, row[1], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(35, 6, row[2], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, row[3], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *Renderer) billShip(pdf *gofpdf.Fpdf, doc *models.QuoteDoc) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "BILL TO / SHIP TO", "", 1, "L", false, 0, "")

	pdf.SetFillColor(245, 245, 245)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(88, 7, "Bill To", "1", 0, "C", true, 0, "")
	pdf.CellFormat(88, 7, "Ship To", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	x, y := pdf.GetX(), pdf.GetY()
	pdf.MultiCell(88, 5, doc.BillToName+"\n"+doc.BillToAddress, "1", "L", false)
	leftBottom := pdf.GetY()
	pdf.SetXY(x+88, y)
	pdf.MultiCell(88, 5, doc.ShipToName+"\n"+doc.ShipToAddress, "1", "L", false)
	if pdf.GetY() < leftBottom {
		pdf.SetY(leftBottom)
	}
	pdf.Ln(6)
}

func (r *Renderer) summaryBand(pdf *gofpdf.Fpdf, doc *models.QuoteDoc) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "PRICING SUMMARY", "", 1, "L", false, 0, "")

	// Subtotal shown pre-discount; the discount row reconciles it with
	// the grand total.
	preDiscount := doc.Subtotal.Add(doc.TotalDiscountAbs)
	rows := [][2]string{
		{"Subtotal", FormatMoney(preDiscount, doc.Currency)},
		{"Discount", fmt.Sprintf("%s (%d%%)", FormatMoney(doc.TotalDiscountAbs, doc.Currency), int(doc.TotalDiscountPct*100))},
		{"Tax", FormatMoney(doc.Tax, doc.Currency)},
		{"Grand Total", FormatMoney(doc.GrandTotal, doc.Currency)},
	}
	for i, row := range rows {
		last := i == len(rows)-1
		if last {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.CellFormat(60, 7, row[0], "1", 0, "R", last, 0, "")
		pdf.CellFormat(50, 7, row[1], "1", 1, "R", last, 0, "")
	}
	pdf.Ln(6)
}

func (r *Renderer) lineTable(pdf *gofpdf.Fpdf, doc *models.QuoteDoc) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "LINE ITEMS", "", 1, "L", false, 0, "")

	headers := []struct {
		label string
		width float64
	}{
		{"#", 8}, {"Product", 68}, {"SKU", 22}, {"Qty", 12},
		{"Unit", 24}, {"Disc %", 16}, {"Line Total", 26},
	}
	pdf.SetFillColor(245, 245, 245)
	pdf.SetFont("Helvetica", "B", 9)
	for _, h := range headers {
		pdf.CellFormat(h.width, 7, h.label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	for _, line := range doc.Lines {
		name := line.ProductName
		if line.IsBundleParent {
			name += " (Bundle)"
		}
		if line.IsRequiredOption {
			name += " (Required)"
		}
		parts := []string{name}
		if line.AttributesText != "" {
			parts = append(parts, line.AttributesText)
		}
		if line.IsSubscription && line.TermMonths != nil {
			extended := line.UnitPrice.Mul(decimal.NewFromInt(int64(*line.TermMonths)))
			parts = append(parts, fmt.Sprintf("%s / month x %d months = %s per unit",
				FormatMoney(line.UnitPrice, doc.Currency), *line.TermMonths,
				FormatMoney(extended, doc.Currency)))
		}
		indent := strings.Repeat("   ", line.IndentLevel)
		product := indent + strings.Join(parts, "\n"+indent)

		disc := "-"
		if line.DiscountPct > 0 {
			disc = fmt.Sprintf("%d%%", int(line.DiscountPct*100))
		}

		// Measure the product cell to keep the row heights aligned.
		pdf.SetFont("Helvetica", "", 9)
		lineCount := len(pdf.SplitText(product, 66))
		rowH := float64(lineCount) * 5
		if rowH < 7 {
			rowH = 7
		}

		cellStyle := ""
		if line.IsBundleParent {
			cellStyle = "B"
		}
		pdf.CellFormat(8, rowH, fmt.Sprintf("%d", line.Index), "1", 0, "C", false, 0, "")
		x, y := pdf.GetX(), pdf.GetY()
		pdf.SetFont("Helvetica", cellStyle, 9)
		pdf.MultiCell(68, 5, product, "1", "L", false)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetXY(x+68, y)
		pdf.CellFormat(22, rowH, line.SkuCode, "1", 0, "C", false, 0, "")
		pdf.CellFormat(12, rowH, fmt.Sprintf("%d", line.Qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(24, rowH, FormatMoney(line.UnitPrice, doc.Currency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(16, rowH, disc, "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, rowH, FormatMoney(line.LineTotal, doc.Currency), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

func (r *Renderer) footer(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "TERMS AND CONDITIONS", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, term := range []string{
		"- This quote is valid for 30 days from the date of issue",
		"- Payment terms: Net 30 days",
		"- All prices are subject to change without notice",
		"- Delivery: Standard shipping included",
		"- Returns: 30-day return policy for unused items",
	} {
		pdf.CellFormat(0, 5, term, "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 9)
	for _, label := range []string{"Customer Signature:", "Date:", "Authorized By:"} {
		pdf.CellFormat(45, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 8, "_________________________", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, "Thank you for your business! For questions about this quote, please contact our sales team.", "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}
