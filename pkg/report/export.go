package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Format is a report export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat returns the export format for s, case-insensitively.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(s)) {
	case FormatXLSX:
		return FormatXLSX, true
	case FormatPDF:
		return FormatPDF, true
	}
	return "", false
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Filename returns the download file name of the report.
func (f Format) Filename(r Report) string {
	name := fmt.Sprintf("report-%s-%04d", r.Parameters.DeviceID, r.Parameters.Year)
	if r.Parameters.Month != nil {
		name += fmt.Sprintf("-%02d", *r.Parameters.Month)
	}
	if r.Parameters.Day != nil {
		name += fmt.Sprintf("-%02d", *r.Parameters.Day)
	}
	return name + "." + string(f)
}

// Export renders the report in the given format.
func Export(r Report, f Format) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return BuildXLSX(r)
	case FormatPDF:
		return BuildPDF(r)
	}
	return nil, fmt.Errorf("unknown export format: %s", f)
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func optionalText(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

// BuildXLSX renders a workbook with a summary, a daily and an entries sheet.
func BuildXLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	dailySheet := "daily"
	entriesSheet := "entries"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(dailySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(entriesSheet); err != nil {
		return nil, err
	}

	rows := [][2]any{
		{"Device", r.Parameters.DeviceID},
		{"Granularity", string(r.Granularity)},
		{"From", r.DateRange.Formatted.From},
		{"To", r.DateRange.Formatted.To},
		{"Time", r.TimeRange.From + " - " + r.TimeRange.To},
		{"Days", r.Summary.TotalDays},
		{"Entries", r.Summary.TotalEntries},
		{"Average (kWh)", r.Summary.AvgWatt},
		{"Max (kWh)", r.Summary.MaxWatt},
		{"Min (kWh)", r.Summary.MinWatt},
		{"Sum (kWh)", r.Summary.SumKWh},
	}
	_ = f.SetCellValue(summarySheet, "A1", "Energy Report")
	for i, row := range rows {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}
	if r.Warning != "" {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", len(rows)+4), r.Warning)
	}

	for i, h := range []string{"Date", "Count", "Sum (kWh)", "Average (kWh)", "Max (kWh)", "Min (kWh)", "Average A+", "Average A-"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(dailySheet, cell, h)
	}
	for i, d := range r.DailyStats {
		row := i + 2
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("A%d", row), d.Date)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("B%d", row), d.Count)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("C%d", row), d.SumKWh)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("D%d", row), d.AvgWatt)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("E%d", row), d.MaxWatt)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("F%d", row), d.MinWatt)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("G%d", row), d.AvgAPlus)
		_ = f.SetCellValue(dailySheet, fmt.Sprintf("H%d", row), d.AvgAMinus)
	}

	_ = f.SetCellValue(entriesSheet, "A1", "Time (UTC)")
	_ = f.SetCellValue(entriesSheet, "B1", "kWh")
	_ = f.SetCellValue(entriesSheet, "C1", "A+")
	_ = f.SetCellValue(entriesSheet, "D1", "A-")
	for i, e := range r.Entries {
		row := i + 2
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("A%d", row), e.Datetime)
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("B%d", row), optional(e.KWh))
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("C%d", row), optional(e.APlus))
		_ = f.SetCellValue(entriesSheet, fmt.Sprintf("D%d", row), optional(e.AMinus))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a single document with the summary and the daily table.
func BuildPDF(r Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Energy Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", r.Parameters.DeviceID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s", r.DateRange.Formatted.From, r.DateRange.Formatted.To))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Time: %s - %s", r.TimeRange.From, r.TimeRange.To))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Granularity: %s", r.Granularity))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Days: %d, Entries: %d", r.Summary.TotalDays, r.Summary.TotalEntries))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sum (kWh): %.2f", r.Summary.SumKWh))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average / Max / Min (kWh): %.2f / %.2f / %.2f", r.Summary.AvgWatt, r.Summary.MaxWatt, r.Summary.MinWatt))
	pdf.Ln(8)
	if r.Warning != "" {
		pdf.MultiCell(0, 5, r.Warning, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Sum (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, d := range r.DailyStats {
		pdf.CellFormat(35, 6, d.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", d.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", d.SumKWh), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", d.AvgWatt), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", d.MaxWatt), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", d.MinWatt), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	// quarter hour reports are short enough to list every entry
	if r.Granularity == QuarterHour.Name && len(r.Entries) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, "Time (UTC)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "kWh", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "A+", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "A-", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, e := range r.Entries {
			pdf.CellFormat(60, 6, e.Datetime, "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, optionalText(e.KWh), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, optionalText(e.APlus), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, optionalText(e.AMinus), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
