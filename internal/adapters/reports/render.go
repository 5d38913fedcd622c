package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"drugsecure/pkg/domain"
)

// Render encodes a in the requested format and returns the payload with its
// content type.
func Render(format Format, a domain.Analysis) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return b, "application/json", nil
	case FormatCSV:
		b, err := renderCSV(a)
		return b, "text/csv", err
	case FormatHTML:
		b, err := renderHTML(a)
		return b, "text/html; charset=utf-8", err
	case FormatPNG:
		b, err := renderPNG(a)
		return b, "image/png", err
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", format)
	}
}

// CSVHeader lists the columns of the per-sample CSV export.
func CSVHeader() []string {
	header := []string{"id", "brand", "origin", "cluster", "cluster_label"}
	for _, f := range domain.AllFeatures {
		header = append(header, string(f))
	}
	return header
}

func renderCSV(a domain.Analysis) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(CSVHeader()); err != nil {
		return nil, err
	}
	for _, s := range a.Samples {
		row := []string{s.ID, s.Brand, string(s.Origin), strconv.Itoa(int(s.Cluster)), s.Label}
		for _, f := range domain.AllFeatures {
			row = append(row, formatFloat(s.Value(f)))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"num": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"mean": func(c domain.ClusterSummary, f domain.Feature) string {
		v, ok := c.Mean(f)
		if !ok {
			return "-"
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	},
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Quality report {{.Analysis.ID}}</title></head>
<body>
<h1>Quality report</h1>
<p>Benchmark {{.Analysis.Benchmark}}, feature set {{.Analysis.FeatureSet}}, seed {{.Analysis.Seed}}, completed {{.Analysis.CompletedAt.Format "2006-01-02 15:04:05 MST"}}.</p>
<p>{{.Analysis.Counts.Total}} samples, {{.Analysis.Counts.Clean}} clean, {{.Analysis.Counts.Flagged}} flagged.{{if .Analysis.LowConfidence}} Tier separation is low; treat tiers with caution.{{end}}</p>
<h2>Tiers</h2>
<table>
<thead><tr><th>Tier</th><th>Samples</th>{{range .Features}}<th>{{.Label}}</th>{{end}}<th>Compliance</th></tr></thead>
<tbody>
{{- range $c := .Analysis.Clusters}}
<tr><td>{{$c.Label}}</td><td>{{$c.Count}}</td>{{range $.Features}}<td>{{mean $c .}}</td>{{end}}<td>{{if $c.Compliance.Compliant}}compliant{{else}}{{range $i, $f := $c.Compliance.Failures}}{{if $i}}; {{end}}{{$f.Message}}{{end}}{{end}}</td></tr>
{{- end}}
</tbody>
</table>
<h2>Brand consistency</h2>
<table>
<thead><tr><th>Brand</th><th>Samples</th><th>High purity</th><th>Score</th></tr></thead>
<tbody>
{{- range .Analysis.Brands}}
<tr><td>{{.Brand}}</td><td>{{.Total}}</td><td>{{.HighPurity}}</td><td>{{.Score}}%</td></tr>
{{- end}}
</tbody>
</table>
<h2>Samples</h2>
<table>
<thead><tr><th>ID</th><th>Brand</th><th>Tier</th>{{range .Features}}<th>{{.Label}}</th>{{end}}</tr></thead>
<tbody>
{{- range $s := .Analysis.Samples}}
<tr><td>{{$s.ID}}</td><td>{{$s.Brand}}</td><td>{{$s.Label}}</td>{{range $.Features}}<td>{{num ($s.Value .)}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</body></html>
`))

func renderHTML(a domain.Analysis) ([]byte, error) {
	features := a.FeatureSet.Features()
	buf := &bytes.Buffer{}
	if err := reportTemplate.Execute(buf, struct {
		Analysis domain.Analysis
		Features []domain.Feature
	}{a, features}); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

const (
	chartWidth  = 480
	chartHeight = 240
	chartMargin = 20
)

var (
	colorGood = color.RGBA{R: 46, G: 139, B: 87, A: 255}
	colorFair = color.RGBA{R: 230, G: 160, B: 30, A: 255}
	colorPoor = color.RGBA{R: 200, G: 50, B: 50, A: 255}
	colorAxis = color.RGBA{R: 60, G: 60, B: 60, A: 255}
)

// scoreColor buckets a consistency score.
func scoreColor(score int) color.RGBA {
	switch {
	case score >= 70:
		return colorGood
	case score >= 40:
		return colorFair
	default:
		return colorPoor
	}
}

// renderPNG draws one bar per brand with height proportional to its
// consistency score.
func renderPNG(a domain.Analysis) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	plotTop := chartMargin
	plotBottom := chartHeight - chartMargin
	plotHeight := plotBottom - plotTop
	axis := image.Rect(chartMargin, plotBottom, chartWidth-chartMargin, plotBottom+1)
	draw.Draw(img, axis, &image.Uniform{C: colorAxis}, image.Point{}, draw.Src)

	n := len(a.Brands)
	if n > 0 {
		slot := (chartWidth - 2*chartMargin) / n
		gap := slot / 5
		for i, b := range a.Brands {
			x0 := chartMargin + i*slot + gap
			x1 := chartMargin + (i+1)*slot - gap
			if x1 <= x0 {
				x1 = x0 + 1
			}
			h := plotHeight * clampScore(b.Score) / 100
			if h == 0 {
				h = 1
			}
			bar := image.Rect(x0, plotBottom-h, x1, plotBottom)
			draw.Draw(img, bar, &image.Uniform{C: scoreColor(b.Score)}, image.Point{}, draw.Src)
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}
