// Package receipt renders order receipts as PDF documents.
package receipt

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

type Line struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

type Receipt struct {
	OrderID  int
	Username string
	Date     time.Time
	Lines    []Line
	Total    decimal.Decimal
}

// Renderer lays receipts out on A4; fpdf adds pages when the lines run over.
type Renderer struct {
	storeName string
	location  *time.Location
	compress  bool
}

func NewRenderer(storeName string) *Renderer {
	return &Renderer{storeName: storeName, location: time.Local, compress: true}
}

const (
	colName  = 90.0
	colQty   = 25.0
	colPrice = 35.0
	colSub   = 35.0
	rowH     = 8.0
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Render writes the receipt as a PDF to w.
func (r *Renderer) Render(w io.Writer, rc Receipt) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(rc.Date)
	pdf.SetModificationDate(rc.Date)
	pdf.SetTitle(fmt.Sprintf("%s receipt #%d", r.storeName, rc.OrderID), true)
	pdf.SetCreator(r.storeName, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(r.storeName), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr("Order #"+strconv.Itoa(rc.OrderID)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr("Customer: "+rc.Username), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Date: "+rc.Date.In(r.location).Format("02 Jan 2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(colName, rowH, "Product", "B", 0, "L", true, 0, "")
	pdf.CellFormat(colQty, rowH, "Qty", "B", 0, "R", true, 0, "")
	pdf.CellFormat(colPrice, rowH, "Unit price", "B", 0, "R", true, 0, "")
	pdf.CellFormat(colSub, rowH, "Subtotal", "B", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, l := range rc.Lines {
		pdf.CellFormat(colName, rowH, tr(l.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(colQty, rowH, strconv.Itoa(l.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(colPrice, rowH, money(l.UnitPrice), "", 0, "R", false, 0, "")
		pdf.CellFormat(colSub, rowH, money(l.Subtotal), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(colName+colQty+colPrice, rowH+2, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(colSub, rowH+2, money(rc.Total), "T", 1, "R", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, tr("Thank you for shopping at "+r.storeName+"."), "", 1, "L", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render receipt %d: %w", rc.OrderID, err)
	}
	return pdf.Output(w)
}

// Filename is the download name for a receipt: receipt-<username>-<orderID>.pdf
// with the username reduced to [a-z0-9_-].
func Filename(username string, orderID int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(username) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" {
		name = "customer"
	}
	return "receipt-" + name + "-" + strconv.Itoa(orderID) + ".pdf"
}
