package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"availability-dashboard/internal/frame"
)

const (
	ColTimestamp = "timestamp"
	ColValue     = "value"
	ColHour      = "hour"
	ColPlotName  = "Plot name"
	ColMetric    = "metric (sf_metric)"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts the timestamp layouts found in exported monitoring
// data. Values without an offset are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Load reads a .csv or .xlsx file into a validated Dataset.
func Load(path string) (*Dataset, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		header, rows, err = readCSV(path)
	case ".xlsx", ".xlsm":
		header, rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	f, err := fromRecords(header, rows)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return New(f)
}

func readCSV(path string) ([]string, [][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("dataset %s is empty", path)
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	all, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}
	return all[0], all[1:], nil
}

// fromRecords converts string records into typed columns. timestamp, value
// and hour have fixed types; other columns are numeric when every cell
// parses as a number and strings otherwise.
func fromRecords(header []string, rows [][]string) (*frame.Frame, error) {
	cell := func(row []string, j int) string {
		if j < len(row) {
			return strings.TrimSpace(row[j])
		}
		return ""
	}

	var cols []*frame.Column
	hasHour := false
	var times []time.Time
	for j, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		switch name {
		case ColTimestamp:
			times = make([]time.Time, len(rows))
			for i, row := range rows {
				t, err := ParseTime(cell(row, j))
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i+2, err)
				}
				times[i] = t
			}
			cols = append(cols, frame.NewTimes(name, times))
		case ColValue, ColHour:
			vals := make([]float64, len(rows))
			for i, row := range rows {
				v, err := strconv.ParseFloat(cell(row, j), 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: %s %q is not numeric", i+2, name, cell(row, j))
				}
				vals[i] = v
			}
			c := frame.NewNumbers(name, vals)
			c.Integer = wholeNumbers(vals)
			cols = append(cols, c)
			hasHour = hasHour || name == ColHour
		default:
			cols = append(cols, inferColumn(name, rows, j, cell))
		}
	}
	if times != nil && !hasHour {
		hours := make([]float64, len(times))
		for i, t := range times {
			hours[i] = float64(t.Hour())
		}
		cols = append(cols, frame.NewIntegers(ColHour, hours))
	}
	return frame.New(cols...)
}

func inferColumn(name string, rows [][]string, j int, cell func([]string, int) string) *frame.Column {
	nums := make([]float64, len(rows))
	strs := make([]string, len(rows))
	numeric := len(rows) > 0
	for i, row := range rows {
		s := cell(row, j)
		strs[i] = s
		if !numeric {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			continue
		}
		nums[i] = v
	}
	if numeric {
		c := frame.NewNumbers(name, nums)
		c.Integer = wholeNumbers(nums)
		return c
	}
	return frame.NewStrings(name, strs)
}

func wholeNumbers(vals []float64) bool {
	for _, v := range vals {
		if v != float64(int64(v)) {
			return false
		}
	}
	return true
}
