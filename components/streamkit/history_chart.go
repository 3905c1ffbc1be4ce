package streamkit

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const defaultChartHeight = "240px"

// HistoryChartOptions tunes the match history chart.
type HistoryChartOptions struct {
	Title      string
	Theme      Theme
	AssetsHost string
}

// RenderMatchHistoryChart renders a bar chart of the most recent matches,
// oldest first, where a win is +1 and a loss is -1.
func RenderMatchHistoryChart(matches []Match, n int, options HistoryChartOptions) (string, error) {
	if n <= 0 || n > len(matches) {
		n = len(matches)
	}
	if n == 0 {
		return "", fmt.Errorf("streamkit: no matches to chart")
	}
	xAxis := make([]string, 0, n)
	points := make([]opts.BarData, 0, n)
	for i := n - 1; i >= 0; i-- {
		m := matches[i]
		value := -1
		color := "#ef4444"
		if m.IsWin() {
			value = 1
			color = "#22c55e"
		}
		xAxis = append(xAxis, strconv.FormatInt(m.MatchID, 10))
		points = append(points, opts.BarData{
			Name:      strconv.FormatInt(m.MatchID, 10),
			Value:     value,
			ItemStyle: &opts.ItemStyle{Color: color},
		})
	}

	title := options.Title
	if title == "" {
		title = "Match History"
	}
	initOpts := opts.Initialization{
		Theme:  chartTheme(options.Theme),
		Width:  "100%",
		Height: defaultChartHeight,
	}
	if options.AssetsHost != "" {
		initOpts.AssetsHost = options.AssetsHost
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(initOpts),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(xAxis)
	bar.AddSeries("Result", points)
	return renderChart(bar)
}

func chartTheme(theme Theme) string {
	if ParseTheme(string(theme)) == ThemeLight {
		return types.ThemeWesteros
	}
	return types.ThemeChalk
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
