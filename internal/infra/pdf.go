package infra

// pdf.go — Factura C PDF generation using go-pdf/fpdf.
// A4 layout: emitter header, comprobante identification (tipo C, punto de
// venta, numero, fecha), recipient block, item table, total, and the CAE
// footer once the invoice is approved.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/galo-graneros/ai-contador/internal/fiscal"
	"github.com/galo-graneros/ai-contador/internal/model"
)

// GenerateFacturaPDF writes the PDF for a factura and returns its path.
// storagePath is created if needed. The file name is deterministic per
// (punto de venta, numero) so regeneration overwrites.
func GenerateFacturaPDF(factura *model.Factura, emisorNombre, emisorCUIT, storagePath string) (string, error) {
	if factura.Numero == nil {
		return "", fmt.Errorf("pdf: la factura no tiene numero asignado")
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: crear directorio: %w", err)
	}

	fileName := fmt.Sprintf("factura_%04d-%08d.pdf", factura.PuntoVenta, *factura.Numero)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Emitter header ───────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 8, emisorNombre, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 5, "CUIT: "+fiscal.FormatearCUIT(emisorCUIT), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// ── Comprobante identification ───────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, "FACTURA C", "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW/2, 6, fmt.Sprintf("Comprobante: %04d-%08d", factura.PuntoVenta, *factura.Numero), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(contentW/2, 6, "Fecha de emisión: "+factura.FechaEmision.Format("02/01/2006"), "RB", 1, "R", false, 0, "")
	pdf.Ln(4)

	// ── Recipient ────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 5, "Receptor: "+factura.ReceptorNombre, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if factura.ReceptorCUIT != nil && *factura.ReceptorCUIT != "" {
		pdf.CellFormat(contentW, 5, "CUIT: "+fiscal.FormatearCUIT(*factura.ReceptorCUIT), "", 1, "L", false, 0, "")
	} else {
		pdf.CellFormat(contentW, 5, "Consumidor final", "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// ── Items ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW*0.55, 6, "Descripción", "1", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.13, 6, "Cant.", "1", 0, "R", false, 0, "")
	pdf.CellFormat(contentW*0.16, 6, "P. unitario", "1", 0, "R", false, 0, "")
	pdf.CellFormat(contentW*0.16, 6, "Subtotal", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range factura.Items {
		pdf.CellFormat(contentW*0.55, 6, item.Descripcion, "1", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.13, 6, item.Cantidad.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(contentW*0.16, 6, "$ "+item.PrecioUnitario.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(contentW*0.16, 6, "$ "+item.Subtotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW*0.84, 8, "TOTAL", "1", 0, "R", false, 0, "")
	pdf.CellFormat(contentW*0.16, 8, "$ "+factura.ImporteTotal.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	// ── CAE footer ───────────────────────────────────────────────────────────
	if factura.CAE != nil && *factura.CAE != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW, 5, "CAE: "+*factura.CAE, "", 1, "L", false, 0, "")
		if factura.CAEVencimiento != nil {
			pdf.CellFormat(contentW, 5, "Vencimiento CAE: "+factura.CAEVencimiento.Format("02/01/2006"), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: escribir %s: %w", fileName, err)
	}
	return filePath, nil
}
