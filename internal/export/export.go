// Package export renders day reports as xlsx workbooks and CSV tables.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"shiftwatch/internal/engine"
	"shiftwatch/internal/model"
)

const (
	summarySheet = "Summary"
	sheetLayout  = "02-Jan"

	colorPermit  = "#FFF2CC"
	colorMissing = "#F4CCCC"
	colorLate    = "#CC0000"
	colorHeader  = "#D9E1F2"
)

var ErrNoReports = errors.New("no reports to export")

var header = []string{"Employee", "Division", "Shift", "Arrival", "Break Out", "Break In", "Departure", "Status", "Late"}

// slot columns, 1-based, in header order
const (
	colArrival = 4
	colBreakIn = 6
)

type styles struct {
	header  int
	permit  int
	missing int
	late    int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorHeader}},
	}); err != nil {
		return s, err
	}
	if s.permit, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorPermit}},
	}); err != nil {
		return s, err
	}
	if s.missing, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorMissing}},
	}); err != nil {
		return s, err
	}
	s.late, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: colorLate},
	})
	return s, err
}

// WriteWorkbook writes a summary sheet followed by one sheet per report.
func WriteWorkbook(w io.Writer, reports ...model.DayReport) error {
	if len(reports) == 0 {
		return ErrNoReports
	}
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("styles: %w", err)
	}
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, st, reports); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	for _, rep := range reports {
		if err := writeDay(f, st, rep); err != nil {
			return fmt.Errorf("sheet %s: %w", rep.Date, err)
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func SheetName(d model.Date) string {
	return d.Start(nil).Format(sheetLayout)
}

func writeSummary(f *excelize.File, st styles, reports []model.DayReport) error {
	cols := []interface{}{"Date", "Total", "Present", "Permit", "Absent", "Late", "Attendance %", "Punctuality %"}
	if err := f.SetSheetRow(summarySheet, "A1", &cols); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "H1", st.header); err != nil {
		return err
	}
	for i, rep := range reports {
		m := rep.Metrics
		row := []interface{}{
			rep.Date.String(), m.Total, m.Present, m.Permit, m.Absent, m.Late,
			m.AttendanceRate.InexactFloat64(), m.PunctualityRate.InexactFloat64(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "H", 14)
}

func writeDay(f *excelize.File, st styles, rep model.DayReport) error {
	sheet := SheetName(rep.Date)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	cols := make([]interface{}, len(header))
	for i, h := range header {
		cols[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cols); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return err
	}
	for i, c := range rep.Classifications {
		rowNum := i + 2
		values := Row(c)
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		first, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(sheet, first, &row); err != nil {
			return err
		}
		if err := styleRow(f, st, sheet, rowNum, c); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", 24); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "C", "I", 12)
}

// styleRow colors a row: permit and absent rows get a fill, present rows
// mark empty slots and late times.
func styleRow(f *excelize.File, st styles, sheet string, rowNum int, c model.Classification) error {
	cell := func(col int) string {
		name, _ := excelize.CoordinatesToCellName(col, rowNum)
		return name
	}
	if !c.Status.Present() {
		return f.SetCellStyle(sheet, cell(1), cell(len(header)), st.permit)
	}
	for i, slot := range c.Slots.All() {
		col := colArrival + i
		if slot.IsEmpty() {
			if err := f.SetCellStyle(sheet, cell(col), cell(col), st.missing); err != nil {
				return err
			}
		}
	}
	if c.Late {
		if err := f.SetCellStyle(sheet, cell(colArrival), cell(colArrival), st.late); err != nil {
			return err
		}
	}
	if c.BreakReturnLate() {
		if err := f.SetCellStyle(sheet, cell(colBreakIn), cell(colBreakIn), st.late); err != nil {
			return err
		}
	}
	return nil
}

// Row is the tabular form of one classification shared by both formats.
func Row(c model.Classification) []string {
	status := string(c.Status)
	if c.Status == model.StatusPermit && c.ManualLabel != "" {
		status = c.ManualLabel
	}
	late := ""
	if c.Late {
		late = "LATE"
		if threshold, ok := engine.LateThreshold(c.Shift); ok {
			late = "LATE (after " + threshold.HHMM() + ")"
		}
	}
	return []string{
		c.Employee,
		c.Division,
		c.Shift.String(),
		c.Arrival.String(),
		c.BreakOut.String(),
		c.BreakIn.String(),
		c.Departure.String(),
		status,
		late,
	}
}

// WriteCSV writes one report as a flat table.
func WriteCSV(w io.Writer, rep model.DayReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Date"}, header...)); err != nil {
		return err
	}
	date := rep.Date.String()
	for _, c := range rep.Classifications {
		if err := cw.Write(append([]string{date}, Row(c)...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename builds a download name such as attendance_2025-01-06.xlsx.
func Filename(from, to model.Date, ext string) string {
	if from == to {
		return "attendance_" + from.String() + "." + ext
	}
	return "attendance_" + from.String() + "_" + to.String() + "." + ext
}
