package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/prometheus/client_golang/prometheus"

	"drugsecure/internal/config"
	"drugsecure/internal/core"
)

// metricsSink is the service recorder picked by metrics.backend together with
// the Prometheus registry it reports into.
type metricsSink struct {
	backend  string
	registry *prometheus.Registry
	recorder core.MetricsRecorder
	vars     *core.ExpvarMetricsRecorder
}

// newMetricsSink builds the recorder for cfg. The registry is always
// returned so runtime collectors can be added to it.
func newMetricsSink(cfg config.MetricsConfig) *metricsSink {
	sink := &metricsSink{backend: cfg.Backend, registry: prometheus.NewRegistry()}
	if cfg.Backend == config.MetricsExpvar {
		sink.vars = core.NewExpvarMetricsRecorder("")
		sink.recorder = sink.vars
		return sink
	}
	sink.backend = config.MetricsPrometheus
	sink.recorder = core.NewPrometheusMetricsRecorder(sink.registry)
	return sink
}

// write dumps the recorded metrics: the expvar snapshot as JSON, or the
// registry as a table of samples.
func (m *metricsSink) write(w io.Writer) error {
	if m.vars != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m.vars.Snapshot())
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	t := table.New().Border(lipgloss.NormalBorder()).Headers("METRIC", "LABELS", "VALUE")
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				value = float64(metric.GetHistogram().GetSampleCount())
			}
			t.Row(mf.GetName(), strings.Join(labels, ","), strconv.FormatFloat(value, 'g', -1, 64))
		}
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}
