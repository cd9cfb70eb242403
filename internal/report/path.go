// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/equilibrium"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Path records the equilibrium amounts along one varying condition.
type Path struct {
	Label      string   // Axis label of the condition, e.g. "T (K)"
	Species    []string // Species names
	X          []float64
	N          [][]float64 // Amounts per point
	Iterations []int       // Interior-point iterations per point
	Converged  []bool
}

// NewPath returns an empty path over the species of sys.
func NewPath(sys *chem.System, label string) *Path {
	return &Path{Label: label, Species: sys.SpeciesNames()}
}

// Add appends the result obtained at condition x.
func (p *Path) Add(x float64, res equilibrium.Result) {
	p.X = append(p.X, x)
	p.N = append(p.N, slices.Clone(res.N))
	p.Iterations = append(p.Iterations, res.NumIter)
	p.Converged = append(p.Converged, res.Converged)
}

// Len returns the number of points.
func (p *Path) Len() int { return len(p.X) }

// TotalIterations returns the iterations summed over the path.
func (p *Path) TotalIterations() (total int) {
	for _, n := range p.Iterations {
		total += n
	}
	return
}

// WriteTable writes one row per point.
func (p *Path) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tITER\t%s\t\n", p.Label, strings.Join(p.Species, "\t"))
	for k, x := range p.X {
		fmt.Fprintf(tw, "%g\t%d", x, p.Iterations[k])
		if !p.Converged[k] {
			fmt.Fprint(tw, "*")
		}
		for _, n := range p.N[k] {
			fmt.Fprintf(tw, "\t%.4e", n)
		}
		fmt.Fprintln(tw, "\t")
	}
	return tw.Flush()
}

// WritePNG plots the amount of every species against the condition.
func (p *Path) WritePNG(w io.Writer) error {
	plt := plot.New()
	plt.Title.Text = "Equilibrium amounts"
	plt.X.Label.Text = p.Label
	plt.Y.Label.Text = "amount (mol)"
	plt.Add(plotter.NewGrid())
	plt.Legend.Top = true

	for i, name := range p.Species {
		xys := make(plotter.XYs, len(p.X))
		for k, x := range p.X {
			xys[k].X, xys[k].Y = x, p.N[k][i]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("report: species %q: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.SoftColors))
		plt.Add(line)
		plt.Legend.Add(name, line)
	}

	wt, err := plt.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// WriteHTML renders the amounts and the iteration counts as an echarts page.
func (p *Path) WriteHTML(w io.Writer) error {
	axis := make([]string, len(p.X))
	for k, x := range p.X {
		axis[k] = fmt.Sprintf("%g", x)
	}
	legend := opts.Legend{
		Type:   "scroll",
		Orient: "vertical",
		Right:  "10",
		Top:    "20",
		Bottom: "20",
	}

	amounts := charts.NewLine()
	amounts.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Equilibrium amounts",
			Subtitle: "species amounts in mol against " + p.Label,
		}),
		charts.WithLegendOpts(legend),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: p.Label}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mol", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	)
	amounts.SetXAxis(axis)
	for i, name := range p.Species {
		data := make([]opts.LineData, len(p.X))
		for k := range p.X {
			data[k] = opts.LineData{Value: p.N[k][i]}
		}
		amounts.AddSeries(name, data)
	}

	iterations := charts.NewBar()
	iterations.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Iterations",
			Subtitle: "interior-point iterations per point",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: p.Label}),
	)
	data := make([]opts.BarData, len(p.X))
	for k, n := range p.Iterations {
		data[k] = opts.BarData{Value: n}
	}
	iterations.SetXAxis(axis).AddSeries("iterations", data)

	page := components.NewPage()
	page.AddCharts(amounts, iterations)
	return page.Render(w)
}
