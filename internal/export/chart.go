package export

import (
	"fmt"
	"io"

	"family-ledger-go/internal/domain/aggregation"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const PNGContentType = "image/png"

var (
	chartWidth  = 8 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// RenderCategoryChart draws one bar per category group as a PNG.
func RenderCategoryChart(w io.Writer, dashboard *aggregation.Dashboard) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Expenses by category, %s to %s",
		dashboard.From.Format(dateLayout), dashboard.To.Format(dateLayout))
	p.Y.Label.Text = "Amount"
	p.Y.Min = 0

	if len(dashboard.Groups) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Max = 1
		p.X.Label.Text = "no expenses in range"
	} else {
		values := make(plotter.Values, len(dashboard.Groups))
		names := make([]string, len(dashboard.Groups))
		for i, group := range dashboard.Groups {
			values[i] = group.Total
			names[i] = group.Name
		}

		bars, err := plotter.NewBarChart(values, vg.Points(24))
		if err != nil {
			return fmt.Errorf("build bar chart: %w", err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(0)
		p.Add(bars)
		p.NominalX(names...)
	}

	writer, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if _, err := writer.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
