package dataset_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"availability-dashboard/internal/dataset"
	"availability-dashboard/internal/dataset/datasettest"
	"availability-dashboard/internal/frame"
)

const csvSample = `Plot name,metric (sf_metric),timestamp,value,hour
NOW,synthetic_monitoring_visible_stores,2026-02-01 06:11:20-05:00,37,6
NOW,synthetic_monitoring_visible_stores,2026-02-01 06:11:30-05:00,512,6
NOW,synthetic_monitoring_visible_stores,2026-02-01 07:00:00-05:00,19000,7
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_CSV(t *testing.T) {
	d, err := dataset.Load(writeFile(t, "data.csv", csvSample))
	require.NoError(t, err)

	f := d.Frame()
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []string{"Plot name", "metric (sf_metric)", "timestamp", "value", "hour"}, f.Names())

	ts, _ := f.Column("timestamp")
	assert.Equal(t, frame.Time, ts.Kind)
	hour, _ := f.Column("hour")
	assert.True(t, hour.Integer)
}

func TestLoad_DerivesHourWhenMissing(t *testing.T) {
	body := "timestamp,value\n2026-02-01T06:11:20-05:00,37\n2026-02-01T09:00:00-05:00,40\n"
	d, err := dataset.Load(writeFile(t, "data.csv", body))
	require.NoError(t, err)
	hours, err := d.Frame().Numbers("hour")
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 9}, hours)
}

func TestLoad_RejectsNullValues(t *testing.T) {
	body := "timestamp,value,hour\n2026-02-01 06:11:20,,6\n"
	_, err := dataset.Load(writeFile(t, "data.csv", body))
	require.Error(t, err)

	body = "timestamp,value,hour\n,5,6\n"
	_, err = dataset.Load(writeFile(t, "data.csv", body))
	require.Error(t, err)

	body = "timestamp,value,hour\n2026-02-01 06:11:20,5,24\n"
	_, err = dataset.Load(writeFile(t, "data.csv", body))
	require.Error(t, err)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := dataset.Load(writeFile(t, "data.parquet", "PAR1"))
	require.Error(t, err)
}

func TestLoad_XLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	rows := [][]any{
		{"timestamp", "value", "hour"},
		{"2026-02-01 06:11:20-05:00", "37", "6"},
		{"2026-02-01 07:11:20-05:00", "45", "7"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
	}
	p := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, wb.SaveAs(p))

	d, err := dataset.Load(p)
	require.NoError(t, err)
	vals, err := d.Frame().Numbers("value")
	require.NoError(t, err)
	assert.Equal(t, []float64{37, 45}, vals)
}

func TestSummary(t *testing.T) {
	d := datasettest.New(t)
	s := d.Summary()

	assert.Equal(t, 2*24*6, s.TotalRows)
	assert.Equal(t, "int64", s.Columns["value"])
	assert.Equal(t, "object", s.Columns["Plot name"])
	assert.True(t, strings.HasPrefix(s.Columns["timestamp"], "datetime64[ns"))
	assert.Equal(t, dataset.HourRange{Min: 0, Max: 23}, s.HourRange)
	assert.Equal(t, int64(1000), s.ValueStats.Min)
	assert.Len(t, s.HourlyAverages, 24)
	assert.Equal(t, int64(1008), s.HourlyAverages[0])
	assert.Equal(t, int64(3308), s.HourlyAverages[23])
	assert.Contains(t, s.Description, "every 10 minutes")
	assert.Contains(t, s.Description, "'Plot name' is always 'NOW'")
}

func TestSummaryText(t *testing.T) {
	text := datasettest.New(t).SummaryText()
	assert.True(t, strings.HasPrefix(text, "DATASET SUMMARY"))
	assert.Contains(t, text, "- Total rows: 288")
	assert.Contains(t, text, "Hour 0: avg 1,008 visible stores")
	assert.Contains(t, text, "Hour 23: avg 3,308 visible stores")
	assert.Greater(t, len(text), 100)
}

func TestPreview(t *testing.T) {
	d := datasettest.New(t)
	rows := d.Preview(500)
	require.Len(t, rows, 100)
	assert.Equal(t, "2026-02-01 00:00:00-05:00", rows[0]["timestamp"])
	assert.Equal(t, int64(1000), rows[0]["value"])
	assert.Len(t, d.Preview(3), 3)
}

func TestFilter(t *testing.T) {
	d := datasettest.New(t)
	from, to := 8, 9
	res, err := d.Filter(dataset.FilterParams{
		DateStart: "2026-02-02",
		DateEnd:   "2026-02-02",
		HourStart: &from,
		HourEnd:   &to,
		Resample:  "1h",
	})
	require.NoError(t, err)
	require.NotNil(t, res.KPIs)

	assert.Equal(t, 12, res.KPIs.TotalRecords)
	assert.Equal(t, int64(1915), res.KPIs.Current)
	assert.Equal(t, int64(1915), res.KPIs.Peak)
	require.Len(t, res.TimeSeries, 2)
	require.NotNil(t, res.TimeSeries[0].Mean)
	assert.Equal(t, 1812.5, *res.TimeSeries[0].Mean)
	require.Len(t, res.HourlyAvg, 2)
	assert.Equal(t, dataset.HourlyAvg{Hour: 8, Value: 1812}, res.HourlyAvg[0])
	require.Len(t, res.Heatmap, 2)
	assert.Equal(t, "2026-02-02", res.Heatmap[0].Date)
}

func TestFilter_EmptySelection(t *testing.T) {
	d := datasettest.New(t)
	res, err := d.Filter(dataset.FilterParams{DateStart: "2030-01-01"})
	require.NoError(t, err)
	assert.Nil(t, res.KPIs)
	assert.Empty(t, res.TimeSeries)
	assert.Empty(t, res.Heatmap)
	assert.Empty(t, res.HourlyAvg)
}

func TestFilter_BadParams(t *testing.T) {
	d := datasettest.New(t)
	_, err := d.Filter(dataset.FilterParams{DateStart: "02/01/2026"})
	require.Error(t, err)
	_, err = d.Filter(dataset.FilterParams{Resample: "fortnightly"})
	require.Error(t, err)
}
