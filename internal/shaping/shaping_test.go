package shaping_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"availability-dashboard/internal/dataset/datasettest"
	"availability-dashboard/internal/frame"
	"availability-dashboard/internal/shaping"
)

func eval(t *testing.T, code string) *frame.Frame {
	t.Helper()
	out, err := shaping.Eval(datasettest.Frame(t, 2), code)
	require.NoError(t, err, code)
	return out
}

func TestEval_HourlyMean(t *testing.T) {
	out := eval(t, "df.groupby('hour')['value'].mean().reset_index()")

	assert.Equal(t, []string{"hour", "value"}, out.Names())
	require.Equal(t, 24, out.Len())
	vals, err := out.Numbers("value")
	require.NoError(t, err)
	// (1002.5 + 1012.5) / 2
	assert.Equal(t, 1007.5, vals[0])
}

func TestEval_Resample(t *testing.T) {
	out := eval(t, "df.resample('1h', on='timestamp')['value'].mean().reset_index()")
	assert.Equal(t, []string{"timestamp", "value"}, out.Names())
	assert.Equal(t, 48, out.Len())

	ts, _ := out.Column("timestamp")
	assert.Equal(t, frame.Time, ts.Kind)
	assert.True(t, ts.Times[0].Equal(datasettest.Start))

	viaIndex := eval(t, "df.set_index('timestamp')['value'].resample('1h').mean().reset_index()")
	assert.Equal(t, out.Records(), viaIndex.Records())
}

func TestEval_SortHead(t *testing.T) {
	out := eval(t, "df.sort_values('value', ascending=False).head(5)")
	require.Equal(t, 5, out.Len())
	vals, _ := out.Numbers("value")
	assert.Equal(t, 3315.0, vals[0])
	assert.GreaterOrEqual(t, vals[0], vals[4])
}

func TestEval_ColumnSelection(t *testing.T) {
	out := eval(t, "df[['timestamp', 'value']]")
	assert.Equal(t, []string{"timestamp", "value"}, out.Names())
	assert.Equal(t, 288, out.Len())

	single := eval(t, "df['value']")
	assert.Equal(t, []string{"value"}, single.Names())
}

func TestEval_DateHourGrid(t *testing.T) {
	out := eval(t, "df.assign(date=df['timestamp'].dt.date).groupby(['date', 'hour'])['value'].mean().reset_index()")
	assert.Equal(t, []string{"date", "hour", "value"}, out.Names())
	require.Equal(t, 48, out.Len())
	recs := out.Records()
	assert.Equal(t, "2026-02-01", recs[0]["date"])
	assert.Equal(t, "2026-02-02", recs[47]["date"])
}

func TestEval_Filters(t *testing.T) {
	cases := []struct {
		code string
		rows int
	}{
		{"df[(df['hour'] >= 8) & (df['hour'] <= 9)]", 24},
		{"df[df['hour'].between(8, 9)]", 24},
		{"df[df['hour'].isin([0, 23])]", 24},
		{"df[~(df['hour'] < 23)]", 12},
		{"df[df['timestamp'] >= '2026-02-02']", 144},
		{"df[df['timestamp'] < pd.Timestamp('2026-02-01 01:00')]", 6},
		{"df.loc[df['hour'] == 5, ['timestamp', 'value']]", 12},
		{"df[df['timestamp'] >= df['timestamp'].max() - pd.Timedelta(hours=1)]", 7},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.rows, eval(t, tc.code).Len())
		})
	}
}

func TestEval_DayName(t *testing.T) {
	out := eval(t, "df.assign(day=df['timestamp'].dt.day_name()).groupby('day')['value'].mean().reset_index()")
	require.Equal(t, 2, out.Len())
	recs := out.Records()
	// 2026-02-01 is a Sunday
	assert.Equal(t, "Monday", recs[0]["day"])
	assert.Equal(t, "Sunday", recs[1]["day"])
}

func TestEval_Rolling(t *testing.T) {
	out := eval(t, "df.assign(ma=df['value'].rolling(3).mean()).head(3)")
	recs := out.Records()
	assert.Nil(t, recs[0]["ma"])
	assert.Nil(t, recs[1]["ma"])
	assert.Equal(t, 1001.0, recs[2]["ma"])
}

func TestEval_SampleIsSeeded(t *testing.T) {
	a := eval(t, "df.sample(n=10, random_state=42)")
	b := eval(t, "df.sample(n=10, random_state=42)")
	require.Equal(t, 10, a.Len())
	assert.Equal(t, a.Records(), b.Records())

	frac := eval(t, "df.sample(frac=0.5, random_state=1)")
	assert.Equal(t, 144, frac.Len())

	up := eval(t, "df.sample(n=1000, replace=True, random_state=3)")
	assert.Equal(t, 1000, up.Len())
}

func TestEval_DoesNotModifyInput(t *testing.T) {
	df := datasettest.Frame(t, 1)
	before := df.Records()
	_, err := shaping.Eval(df, "df.assign(value=df['value'] * 2).rename(columns={'hour': 'h'})")
	require.NoError(t, err)
	assert.Equal(t, before, df.Records())
	assert.Equal(t, []string{"Plot name", "metric (sf_metric)", "timestamp", "value", "hour"}, df.Names())
}

func TestEval_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown method":   "df.nonexistent()",
		"unknown name":     "os.system('ls')",
		"builtin call":     "__import__('os')",
		"dunder attribute": "df.__class__",
		"syntax":           "df.head(",
		"statement":        "x = df",
		"lambda":           "df.apply(lambda r: r)",
		"not a table":      "df['value'].mean()",
		"pending groupby":  "df.groupby('hour')",
		"no rows":          "df[df['hour'] > 99]",
		"missing column":   "df['nope']",
		"string mean":      "df.groupby('hour')['Plot name'].mean()",
		"empty":            "   ",
		"too long":         "df" + strings.Repeat(".copy()", 400),
		"too deep":         strings.Repeat("(", 100) + "df" + strings.Repeat(")", 100),
		"huge sample n":    "df.sample(n=2000000000, replace=True)",
		"huge sample frac": "df.sample(frac=20000, replace=True)",
	}
	df := datasettest.Frame(t, 1)
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := shaping.Eval(df, code)
			require.Error(t, err)
			var se *shaping.Error
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestEval_ErrorNamesMethod(t *testing.T) {
	_, err := shaping.Eval(datasettest.Frame(t, 1), "df.nonexistent()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}
