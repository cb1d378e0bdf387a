package simulation

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultReportPlaces is the rounding used for KPI values in reports
const DefaultReportPlaces = 2

// formatValue renders a KPI value rounded half away from zero
func formatValue(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).StringFixed(places)
}

func formatOptional(v *float64, places int32) string {
	if v == nil {
		return "n/a"
	}
	return formatValue(*v, places)
}

// GenerateConsoleReport formats a result for terminal output
func GenerateConsoleReport(result *Result, places int32) string {
	var builder strings.Builder
	builder.WriteString("Simulation Report\n")
	builder.WriteString("=================\n")
	if result.ScenarioName != "" {
		builder.WriteString(fmt.Sprintf("Scenario: %s\n", result.ScenarioName))
	}
	builder.WriteString(fmt.Sprintf("Runs: %d (%s, seed %d)\n", result.RunCount, result.Algorithm, result.Seed))
	builder.WriteString(fmt.Sprintf("Percentiles (%s, %d retained):\n", result.Retention.Method, result.Retention.SampleSize))
	builder.WriteString(fmt.Sprintf("  P5:  %s\n", formatValue(result.Percentiles.P5, places)))
	builder.WriteString(fmt.Sprintf("  P10: %s\n", formatValue(result.Percentiles.P10, places)))
	builder.WriteString(fmt.Sprintf("  P50: %s\n", formatValue(result.Percentiles.P50, places)))
	builder.WriteString(fmt.Sprintf("  P90: %s\n", formatValue(result.Percentiles.P90, places)))
	builder.WriteString(fmt.Sprintf("  P95: %s\n", formatValue(result.Percentiles.P95, places)))
	builder.WriteString(fmt.Sprintf("Mean: %s\n", formatValue(result.Mean, places)))
	builder.WriteString(fmt.Sprintf("Std Dev: %s\n", formatValue(result.StdDev, places)))
	builder.WriteString(fmt.Sprintf("CV: %s\n", formatOptional(result.CoefficientOfVariation, 4)))
	builder.WriteString(fmt.Sprintf("Skewness: %s\n", formatOptional(result.Skewness, 4)))
	builder.WriteString("Tornado:\n")
	for _, t := range result.Tornado {
		builder.WriteString(fmt.Sprintf("  %-20s %+.3f\n", t.VariableID, t.Sensitivity))
	}
	if len(result.Flags) > 0 {
		flags := make([]string, len(result.Flags))
		for i, f := range result.Flags {
			flags[i] = string(f)
		}
		builder.WriteString(fmt.Sprintf("Flags: %s\n", strings.Join(flags, ", ")))
	}
	builder.WriteString(fmt.Sprintf("Elapsed: %s\n", result.Elapsed))
	return builder.String()
}

// GenerateCSVExport exports summary statistics, tornado and histogram rows
func GenerateCSVExport(result *Result, outputPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create csv export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close csv export: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.WriteAll(csvRows(result)); err != nil {
		return fmt.Errorf("failed to write csv export: %w", err)
	}
	return nil
}

func csvRows(result *Result) [][]string {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	opt := func(v *float64) string {
		if v == nil {
			return ""
		}
		return num(*v)
	}
	rows := [][]string{
		{"section", "key", "value", "extra"},
		{"summary", "runs", strconv.Itoa(result.RunCount), ""},
		{"summary", "p5", num(result.Percentiles.P5), ""},
		{"summary", "p10", num(result.Percentiles.P10), ""},
		{"summary", "p50", num(result.Percentiles.P50), ""},
		{"summary", "p90", num(result.Percentiles.P90), ""},
		{"summary", "p95", num(result.Percentiles.P95), ""},
		{"summary", "mean", num(result.Mean), ""},
		{"summary", "std_dev", num(result.StdDev), ""},
		{"summary", "cv", opt(result.CoefficientOfVariation), ""},
		{"summary", "skewness", opt(result.Skewness), ""},
		{"summary", "percentile_method", result.Retention.Method, ""},
	}
	for _, t := range result.Tornado {
		rows = append(rows, []string{"tornado", t.VariableID, num(t.Sensitivity), ""})
	}
	for _, b := range result.Histogram.Bins {
		rows = append(rows, []string{"histogram", num(b.Lower), strconv.Itoa(b.Count), num(b.Upper)})
	}
	return rows
}
