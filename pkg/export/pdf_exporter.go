package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PlanEntry is one printable calendar line.
type PlanEntry struct {
	Slot      string // position number for blocks, time range for sessions
	BlockType string
	Title     string
	Note      string
}

// PlanDay bundles the entries of a single calendar date.
type PlanDay struct {
	Date    string
	Weekday string
	Entries []PlanEntry
}

// WeekPlan is the printable projection of one calendar week.
type WeekPlan struct {
	Title string
	Days  []PlanDay
}

// PDFExporter renders a week of the study plan into a PDF document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderWeek creates a one-page-per-overflow PDF listing every day of the week.
func (e *PDFExporter) RenderWeek(week WeekPlan) ([]byte, error) {
	if len(week.Days) == 0 {
		return nil, fmt.Errorf("pdf requires at least one day")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 15, 12)
	pdf.AddPage()

	if week.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, week.Title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	for _, day := range week.Days {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(235, 235, 235)
		label := day.Date
		if day.Weekday != "" {
			label = fmt.Sprintf("%s  %s", day.Weekday, day.Date)
		}
		pdf.CellFormat(0, 8, label, "1", 1, "L", true, 0, "")

		if len(day.Entries) == 0 {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 7, "frei", "1", 1, "L", false, 0, "")
			continue
		}

		pdf.SetFont("Arial", "", 9)
		for _, entry := range day.Entries {
			pdf.CellFormat(28, 7, entry.Slot, "1", 0, "C", false, 0, "")
			pdf.CellFormat(34, 7, entry.BlockType, "1", 0, "C", false, 0, "")
			title := entry.Title
			if entry.Note != "" {
				title = fmt.Sprintf("%s (%s)", title, entry.Note)
			}
			pdf.CellFormat(124, 7, title, "1", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
