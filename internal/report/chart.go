package report

import (
	"bytes"
	"context"
	"fmt"

	"finbot/internal/core"

	"github.com/wcharczuk/go-chart/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Chart is a rendered PNG for one distribution.
type Chart struct {
	Kind  core.Kind
	Title string
	PNG   []byte
}

// ChartRenderer draws distributions as pie charts. One renderer is shared by
// the whole process so its semaphore bounds every render in flight.
type ChartRenderer struct {
	sem    *semaphore.Weighted
	width  int
	height int
	render func(d Distribution, width, height int) ([]byte, error)
}

func NewChartRenderer(maxConcurrent int) *ChartRenderer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ChartRenderer{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		width:  640,
		height: 640,
		render: renderPie,
	}
}

// Render draws every distribution concurrently. The output keeps input order.
func (r *ChartRenderer) Render(ctx context.Context, dists []Distribution) ([]Chart, error) {
	out := make([]Chart, len(dists))
	g, ctx := errgroup.WithContext(ctx)
	for i, d := range dists {
		g.Go(func() error {
			if err := r.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer r.sem.Release(1)

			png, err := r.render(d, r.width, r.height)
			if err != nil {
				return fmt.Errorf("render %s chart: %w", d.Kind, err)
			}
			out[i] = Chart{Kind: d.Kind, Title: d.Title(), PNG: png}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func renderPie(d Distribution, width, height int) ([]byte, error) {
	values := make([]chart.Value, 0, len(d.Slices))
	for _, s := range d.Slices {
		v, _ := s.Amount.Decimal().Float64()
		values = append(values, chart.Value{Value: v, Label: s.Label()})
	}

	pie := chart.PieChart{
		Title:  d.Title(),
		Width:  width,
		Height: height,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
