package calendar

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/schedule"
)

// ScheduleSheet is the name of the weekly grid sheet.
const ScheduleSheet = "מערכת"

const (
	defaultFirstHour = 8
	defaultLastHour  = 20
)

// WriteWeekXLSX renders the weekly grid as a spreadsheet with one column per
// teaching day and one row per hour. Events sharing an hour are listed in
// the same cell; the cell takes the color of the first one.
func WriteWeekXLSX(w io.Writer, title string, week schedule.Week) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(ScheduleSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	rtl := true
	if err := f.SetSheetView(ScheduleSheet, -1, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return fmt.Errorf("set sheet view: %w", err)
	}

	first, last, ok := schedule.HourRange(week)
	if !ok {
		first, last = defaultFirstHour, defaultLastHour
	}

	g := grid{f: f, styles: make(map[string]int)}
	if err := g.header(title); err != nil {
		return err
	}

	cells := make(map[string][]schedule.Event)
	for _, e := range week.Events() {
		for h := e.StartHour; h < e.EndHour; h++ {
			cell, err := excelize.CoordinatesToCellName(int(e.Day)+2, h-first+3)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			cells[cell] = append(cells[cell], e)
		}
	}

	for h := first; h < last; h++ {
		row := h - first + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(ScheduleSheet, cell, fmt.Sprintf("%02d:00", h)); err != nil {
			return fmt.Errorf("set hour label: %w", err)
		}
	}

	names := make([]string, 0, len(cells))
	for cell := range cells {
		names = append(names, cell)
	}
	sort.Strings(names)

	for _, cell := range names {
		events := cells[cell]
		titles := make([]string, 0, len(events))
		for _, e := range events {
			titles = append(titles, e.Title)
		}
		if err := f.SetCellValue(ScheduleSheet, cell, strings.Join(titles, "\n")); err != nil {
			return fmt.Errorf("set event cell: %w", err)
		}
		style, err := g.fill(events[0].Color)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(ScheduleSheet, cell, cell, style); err != nil {
			return fmt.Errorf("set event style: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type grid struct {
	f      *excelize.File
	styles map[string]int
}

func (g grid) header(title string) error {
	lastCol, _ := excelize.ColumnNumberToName(domain.TeachingDays + 1)

	if err := g.f.SetColWidth(ScheduleSheet, "A", "A", 8); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := g.f.SetColWidth(ScheduleSheet, "B", lastCol, 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	headerStyle, err := g.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := g.f.SetCellValue(ScheduleSheet, "A1", title); err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	if err := g.f.MergeCell(ScheduleSheet, "A1", lastCol+"1"); err != nil {
		return fmt.Errorf("merge title: %w", err)
	}

	if err := g.f.SetCellValue(ScheduleSheet, "A2", "שעה"); err != nil {
		return fmt.Errorf("set header: %w", err)
	}
	for d := 0; d < domain.TeachingDays; d++ {
		cell, _ := excelize.CoordinatesToCellName(d+2, 2)
		if err := g.f.SetCellValue(ScheduleSheet, cell, domain.Weekday(d).HebrewName()); err != nil {
			return fmt.Errorf("set header: %w", err)
		}
	}
	return g.f.SetCellStyle(ScheduleSheet, "A1", lastCol+"2", headerStyle)
}

func (g grid) fill(color string) (int, error) {
	if id, ok := g.styles[color]; ok {
		return id, nil
	}
	id, err := g.f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return 0, fmt.Errorf("create fill style: %w", err)
	}
	g.styles[color] = id
	return id, nil
}
