package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"drugsecure/internal/classify"
	"drugsecure/internal/core"
	"drugsecure/internal/ingest"
	"drugsecure/pkg/domain"
)

var headingStyle = lipgloss.NewStyle().Bold(true)

func newClassifyCmd(a *app) *cobra.Command {
	var (
		file       string
		featureSet string
		seed       int64
		benchmark  string
		asJSON     bool
		trace      bool
		dumpStats  bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify the baseline plus rows read from a file",
		Long: "Classify the baseline samples together with any rows read from --file.\n" +
			"Each line holds a brand followed by the ten numeric measurements,\n" +
			"separated by commas or tabs. Lines that fail validation are reported and skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if featureSet != "" {
				fs, err := domain.ParseFeatureSet(featureSet)
				if err != nil {
					return err
				}
				a.cfg.Analysis.FeatureSet = fs
			}
			if cmd.Flags().Changed("seed") {
				if seed < 0 {
					return fmt.Errorf("seed must be non-negative")
				}
				a.cfg.Analysis.Seed = uint64(seed)
			}
			if benchmark != "" {
				a.cfg.Analysis.Benchmark = benchmark
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			opts, err := a.cfg.ServiceOptions()
			if err != nil {
				return err
			}
			metrics := newMetricsSink(a.cfg.Metrics)
			opts = append(opts, core.WithLogger(a.logger), core.WithMetricsRecorder(metrics.recorder))
			if trace {
				opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
			}
			svc := core.NewInMemoryService(nil, opts...)

			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read samples: %w", err)
				}
				if err := loadRows(cmd, svc, string(data), a.stderr); err != nil {
					return err
				}
			}

			analysis, err := svc.RunAnalysis(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				err = enc.Encode(analysis)
			} else {
				err = printAnalysis(a.stdout, analysis)
			}
			if err != nil || !dumpStats {
				return err
			}
			return metrics.write(a.stderr)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file of pasted sample rows (brand, then ten measurements)")
	cmd.Flags().StringVar(&featureSet, "feature-set", "", "clustering feature set: classic or extended")
	cmd.Flags().Int64Var(&seed, "seed", 0, "clustering seed")
	cmd.Flags().StringVar(&benchmark, "benchmark", "", "benchmark table name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")
	cmd.Flags().BoolVar(&trace, "trace", false, "write operation spans as JSON lines to stderr")
	cmd.Flags().BoolVar(&dumpStats, "metrics", false, "write the recorded metrics to stderr (format follows metrics.backend)")
	return cmd
}

// loadRows parses and stores every valid row; rejected lines are reported to
// w. It fails only when nothing in a non-empty file was usable.
func loadRows(cmd *cobra.Command, svc *core.Service, text string, w io.Writer) error {
	forms, lineErrs := ingest.ParsePastedBlock(text)
	lines := make([]int, 0, len(lineErrs))
	for line := range lineErrs {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	for _, line := range lines {
		fmt.Fprintf(w, "skipping line %d: %v\n", line, lineErrs[line])
	}
	added := 0
	for i, form := range forms {
		sample, err := form.Validate()
		if err == nil {
			_, _, err = svc.AddSample(cmd.Context(), sample)
		}
		if err != nil {
			fmt.Fprintf(w, "skipping row %d (%s): %v\n", i+1, form.Brand, err)
			continue
		}
		added++
	}
	if added == 0 && (len(forms) > 0 || len(lineErrs) > 0) {
		return errors.New("no valid sample rows in file")
	}
	return nil
}

func printAnalysis(w io.Writer, a domain.Analysis) error {
	samples := table.New().Border(lipgloss.NormalBorder()).
		Headers("ID", "BRAND", "TIER", "LABEL", "POTENCY %", "HEAVY METAL ppm")
	for _, s := range a.Samples {
		samples.Row(s.ID, s.Brand, strconv.Itoa(int(s.Cluster)), s.Label,
			formatFloat(s.ActiveCompound), formatFloat(s.HeavyMetalPpm))
	}

	tiers := table.New().Border(lipgloss.NormalBorder()).
		Headers("TIER", "LABEL", "COUNT", "MEAN POTENCY %", "COMPLIANT", "FAILURES")
	for _, c := range a.Clusters {
		potency := "-"
		if v, ok := c.Mean(domain.FeaturePotency); ok {
			potency = formatFloat(v)
		}
		tiers.Row(strconv.Itoa(int(c.Cluster)), c.Label, strconv.Itoa(c.Count), potency,
			strconv.FormatBool(c.Compliance.Compliant), strconv.Itoa(len(c.Compliance.Failures)))
	}

	brands := table.New().Border(lipgloss.NormalBorder()).
		Headers("BRAND", "SAMPLES", "HIGH PURITY", "SCORE %")
	for _, b := range a.Brands {
		brands.Row(b.Brand, strconv.Itoa(b.Total), strconv.Itoa(b.HighPurity), strconv.Itoa(b.Score))
	}

	header := fmt.Sprintf("Analysis %s  feature set %s  seed %d  benchmark %s",
		a.ID, a.FeatureSet, a.Seed, a.Benchmark)
	summary := fmt.Sprintf("total %d  clean %d  flagged %d", a.Counts.Total, a.Counts.Clean, a.Counts.Flagged)
	if a.LowConfidence {
		summary += fmt.Sprintf("  (low confidence: adjacent tier potency gap at most %g)", classify.LowConfidenceGap)
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n\n%s\n%s\n\n%s\n%s\n",
		headingStyle.Render(header), samples.Render(),
		summary,
		headingStyle.Render("Tiers"), tiers.Render(),
		headingStyle.Render("Brand consistency"), brands.Render())
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
