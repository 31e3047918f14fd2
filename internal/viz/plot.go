package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/pidloop/internal/dynamo"
)

// PlotResult draws setpoint and process value on one chart and the
// controller output below it.
func PlotResult(res *dynamo.Result, width, height int) string {
	if res == nil || res.Steps == 0 {
		return ""
	}

	sp := downsample(res.SetPoints, width)
	pv := downsample(res.PV, width)
	u := downsample(res.Outputs, width)
	span := res.Times[len(res.Times)-1] - res.Times[0]

	top := asciigraph.PlotMany([][]float64{sp, pv},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
		asciigraph.SeriesLegends("setpoint", "process value"),
		asciigraph.Caption(fmt.Sprintf("%.1fs", span)),
	)
	bottom := asciigraph.Plot(u,
		asciigraph.Height(max(height/2, 3)),
		asciigraph.Width(width),
		asciigraph.Caption("controller output"),
	)
	return top + "\n\n" + bottom
}

// downsample picks at most n evenly spaced points, keeping the last one.
func downsample(v []float64, n int) []float64 {
	if n <= 1 || len(v) <= n {
		return v
	}
	out := make([]float64, n)
	step := float64(len(v)-1) / float64(n-1)
	for i := range out {
		out[i] = v[int(float64(i)*step+0.5)]
	}
	return out
}
