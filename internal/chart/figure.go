package chart

import (
	"encoding/json"
	"fmt"

	"availability-dashboard/internal/frame"
)

// Figure is a Plotly figure: traces plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type        string `json:"type"`
	Mode        string `json:"mode,omitempty"`
	Name        string `json:"name,omitempty"`
	LegendGroup string `json:"legendgroup,omitempty"`
	ShowLegend  bool   `json:"showlegend"`
	X           []any  `json:"x,omitempty"`
	Y           []any  `json:"y,omitempty"`
	StackGroup  string `json:"stackgroup,omitempty"`
	HistFunc    string `json:"histfunc,omitempty"`
	Orientation string `json:"orientation,omitempty"`
}

type Layout struct {
	Title        Title   `json:"title"`
	Font         Font    `json:"font"`
	PaperBGColor string  `json:"paper_bgcolor"`
	PlotBGColor  string  `json:"plot_bgcolor"`
	Margin       Margin  `json:"margin"`
	XAxis        Axis    `json:"xaxis"`
	YAxis        Axis    `json:"yaxis"`
	Legend       *Legend `json:"legend,omitempty"`
	BarMode      string  `json:"barmode,omitempty"`
}

type Title struct {
	Text string `json:"text"`
	Font *Font  `json:"font,omitempty"`
}

type Font struct {
	Family string `json:"family,omitempty"`
	Size   int    `json:"size"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

type Axis struct {
	Title     Title  `json:"title"`
	GridColor string `json:"gridcolor"`
	LineColor string `json:"linecolor"`
}

type Legend struct {
	Title Title `json:"title"`
}

// Presentation defaults shared by every chart kind.
const (
	fontFamily   = "Inter, sans-serif"
	fontSize     = 12
	titleSize    = 16
	background   = "white"
	gridColor    = "#EBF0F8"
	marginLeft   = 40
	marginRight  = 40
	marginTop    = 60
	marginBottom = 40
)

// BuildError reports that the shaped table does not fit the requested chart.
type BuildError struct {
	Kind Kind
	Err  error
}

func (e *BuildError) Error() string { return fmt.Sprintf("build %s chart: %v", e.Kind, e.Err) }

func (e *BuildError) Unwrap() error { return e.Err }

// Build maps spec onto a figure of table's rows. Unknown chart types render
// as line charts. The x and y columns (and color, when set) must exist.
func Build(spec Spec, table *frame.Frame) (*Figure, error) {
	spec = spec.WithDefaults()
	kind := spec.ChartType.Resolve()
	fail := func(err error) (*Figure, error) { return nil, &BuildError{Kind: kind, Err: err} }

	x, err := table.MustColumn(spec.X)
	if err != nil {
		return fail(err)
	}
	y, err := table.MustColumn(spec.Y)
	if err != nil {
		return fail(err)
	}
	var color *frame.Column
	if spec.Color != "" {
		if color, err = table.MustColumn(spec.Color); err != nil {
			return fail(err)
		}
	}
	if table.Len() == 0 {
		return fail(fmt.Errorf("no rows to plot"))
	}

	fig := &Figure{Layout: layout(spec)}
	for _, g := range splitByColor(color, table.Len()) {
		t := Trace{
			Name:        g.name,
			LegendGroup: g.name,
			ShowLegend:  color != nil,
			X:           values(x, g.rows),
			Y:           values(y, g.rows),
		}
		switch kind {
		case Line:
			t.Type, t.Mode = "scatter", "lines"
		case Scatter:
			t.Type, t.Mode = "scatter", "markers"
		case Area:
			t.Type, t.Mode, t.StackGroup = "scatter", "lines", "1"
		case Bar:
			t.Type, t.Orientation = "bar", "v"
		case Histogram:
			t.Type = "histogram"
			if spec.Y == spec.X {
				t.Y = nil
			} else {
				t.HistFunc = "sum"
			}
		case Box:
			t.Type, t.Orientation = "box", "v"
		}
		fig.Data = append(fig.Data, t)
	}

	switch kind {
	case Bar:
		fig.Layout.BarMode = "relative"
	case Histogram:
		if spec.Y == spec.X {
			fig.Layout.YAxis.Title.Text = "count"
		} else if _, ok := spec.Labels[spec.Y]; !ok {
			fig.Layout.YAxis.Title.Text = "sum of " + spec.Y
		}
	}
	return fig, nil
}

func layout(spec Spec) Layout {
	l := Layout{
		Title:        Title{Text: spec.Title, Font: &Font{Size: titleSize}},
		Font:         Font{Family: fontFamily, Size: fontSize},
		PaperBGColor: background,
		PlotBGColor:  background,
		Margin:       Margin{L: marginLeft, R: marginRight, T: marginTop, B: marginBottom},
		XAxis:        Axis{Title: Title{Text: spec.label(spec.X)}, GridColor: gridColor, LineColor: gridColor},
		YAxis:        Axis{Title: Title{Text: spec.label(spec.Y)}, GridColor: gridColor, LineColor: gridColor},
	}
	if spec.Color != "" {
		l.Legend = &Legend{Title: Title{Text: spec.label(spec.Color)}}
	}
	return l
}

type group struct {
	name string
	rows []int
}

// splitByColor partitions rows by color value in order of first appearance.
func splitByColor(color *frame.Column, n int) []group {
	if color == nil {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return []group{{rows: rows}}
	}
	var groups []group
	slot := make(map[string]int)
	for i := 0; i < n; i++ {
		name := color.Format(i)
		g, ok := slot[name]
		if !ok {
			g = len(groups)
			slot[name] = g
			groups = append(groups, group{name: name})
		}
		groups[g].rows = append(groups[g].rows, i)
	}
	return groups
}

func values(c *frame.Column, rows []int) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = c.Value(r)
	}
	return out
}

// JSON serializes the figure. Equal figures serialize to equal bytes.
func (f *Figure) JSON() ([]byte, error) {
	return json.Marshal(f)
}
