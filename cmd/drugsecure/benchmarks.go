package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"drugsecure/pkg/domain"
)

func newBenchmarksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "benchmarks",
		Short: "List the configured benchmark tables",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			registry, err := a.cfg.Registry()
			if err != nil {
				return err
			}
			t := table.New().Border(lipgloss.NormalBorder()).
				Headers("NAME", "LABEL", "ACTIVE", "THRESHOLDS")
			for _, b := range registry.List() {
				active := ""
				if b.Name == a.cfg.Analysis.Benchmark {
					active = "*"
				}
				t.Row(b.Name, b.Label, active, describeThresholds(b))
			}
			_, err = fmt.Fprintln(a.stdout, t.Render())
			return err
		},
	}
}

func describeThresholds(b domain.Benchmarks) string {
	var parts []string
	for f, v := range b.Ceilings {
		parts = append(parts, fmt.Sprintf("%s < %g", f, v))
	}
	for f, v := range b.Floors {
		parts = append(parts, fmt.Sprintf("%s > %g", f, v))
	}
	for f, r := range b.Ranges {
		parts = append(parts, fmt.Sprintf("%s in [%g, %g]", f, r.Min, r.Max))
	}
	sort.Strings(parts)
	return strings.Join(parts, "\n")
}
