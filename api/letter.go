/*
letter.go - CTC annexure PDF generation

PURPOSE:
  Renders an approved compensation structure as a one-page annexure PDF:
  employee details, the component breakup (monthly and annual), deferred
  benefits, and the summary totals. HR attaches this to offer and
  revision letters.

LIBRARY: gofpdf
  Pure-Go PDF writer, no external binaries. The layout is a plain table;
  anything fancier belongs in a template system, not here.

SEE ALSO:
  - handlers.go: GetLetter endpoint
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/comp"
	"github.com/warp/comp-engine/directory"
)

// GetLetter renders the CTC annexure PDF for an approved structure.
// Pending and rejected structures have no letter: the numbers are not
// final until approval.
func (h *Handler) GetLetter(w http.ResponseWriter, r *http.Request) {
	id := comp.StructureID(chi.URLParam(r, "id"))

	structure, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if structure.Status != comp.StatusApproved {
		writeError(w, http.StatusConflict, "letter is only available for approved structures", nil)
		return
	}

	var employee *directory.Employee
	if h.Directory != nil {
		employee, _ = h.Directory.Get(r.Context(), structure.EmployeeID)
	}

	pdf, err := buildLetter(structure, employee)
	if err != nil {
		h.Log.Error().Err(err).Str("structure_id", string(id)).Msg("letter generation failed")
		writeError(w, http.StatusInternalServerError, "failed to generate letter", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "ctc-annexure-"+string(id)+".pdf"))
	if err := pdf.Output(w); err != nil {
		h.Log.Error().Err(err).Msg("failed to write letter")
	}
}

func buildLetter(s *comp.CompensationStructure, employee *directory.Employee) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("CTC Annexure", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Annexure A: Compensation Structure", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Header block
	pdf.SetFont("Helvetica", "", 10)
	writeHeaderRow := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}
	if employee != nil {
		writeHeaderRow("Employee", fmt.Sprintf("%s (%s)", employee.Name, employee.ID))
		if employee.Designation != "" {
			writeHeaderRow("Designation", employee.Designation)
		}
		if employee.Department != "" {
			writeHeaderRow("Department", employee.Department)
		}
	} else {
		writeHeaderRow("Employee", string(s.EmployeeID))
	}
	writeHeaderRow("Effective From", s.EffectiveMonth.String())
	writeHeaderRow("Annual CTC", formatAmount(s.AnnualCTC))
	pdf.Ln(4)

	if s.Resolved == nil {
		return nil, fmt.Errorf("structure %s has no resolved snapshot", s.ID)
	}

	// Component table
	const (
		colName    = 90.0
		colMonthly = 45.0
		colAnnual  = 45.0
		rowH       = 7.0
	)
	tableHeader := func(title string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(235, 235, 235)
		pdf.CellFormat(colName, rowH, "Component", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colMonthly, rowH, "Monthly", "1", 0, "R", true, 0, "")
		pdf.CellFormat(colAnnual, rowH, "Annual", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	tableRow := func(name string, monthly, annual comp.Money) {
		pdf.CellFormat(colName, rowH, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colMonthly, rowH, formatAmount(monthly), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colAnnual, rowH, formatAmount(annual), "1", 1, "R", false, 0, "")
	}

	sections := []struct {
		title string
		class comp.Classification
	}{
		{"Earnings", comp.ClassEarning},
		{"Deductions", comp.ClassDeduction},
		{"Deferred Benefits", comp.ClassDeferred},
	}
	for _, section := range sections {
		var rows []comp.ResolvedComponent
		for _, c := range s.Resolved.Components {
			if c.Enabled && c.Classification == section.class {
				rows = append(rows, c)
			}
		}
		if len(rows) == 0 {
			continue
		}
		tableHeader(section.title)
		for _, c := range rows {
			tableRow(c.Name, c.Monthly, c.Annual)
		}
		pdf.Ln(3)
	}

	// Summary block
	summary := s.Resolved.Summary
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	twelve := decimal.NewFromInt(12)
	tableRow("Gross Monthly", summary.GrossMonthly, summary.GrossMonthly.Mul(twelve))
	tableRow("Total Deductions Monthly", summary.TotalDeductionsMonthly, summary.TotalDeductionsMonthly.Mul(twelve))
	tableRow("In-Hand (approx.) Monthly", summary.InHandApproxMonthly, summary.InHandApproxMonthly.Mul(twelve))

	if s.RetentionBonus.IsPositive() {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, fmt.Sprintf(
			"A retention bonus of %s is payable on completion of %d months of service. "+
				"It is part of the annual CTC but not part of monthly pay.",
			formatAmount(s.RetentionBonus), s.RetentionVestingMonths), "", "L", false)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4,
		"In-hand amounts are indicative and exclude income tax deducted at source. "+
			"Statutory contributions follow the rates in force on the payout date.",
		"", "L", false)

	return pdf, pdf.Error()
}

// formatAmount renders a money value with thousands separators, e.g.
// "12,34,567.00" style grouping is deliberately not used: plain western
// grouping keeps the letter unambiguous for non-Indian entities.
func formatAmount(m comp.Money) string {
	s := m.Value.StringFixedBank(2)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	dot := len(s)
	for i, r := range s {
		if r == '.' {
			dot = i
			break
		}
	}
	intPart, frac := s[:dot], s[dot:]
	var out []byte
	for i, c := range []byte(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	result := string(out) + frac
	if neg {
		result = "-" + result
	}
	return result
}
