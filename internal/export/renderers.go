package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

// CSVRenderer writes the metric snapshot as delimited text.
type CSVRenderer struct {
	outputDir string
}

// NewCSVRenderer creates a CSV renderer writing under outputDir.
func NewCSVRenderer(outputDir string) *CSVRenderer {
	return &CSVRenderer{outputDir: outputDir}
}

func (r *CSVRenderer) Format() string { return "csv" }

func (r *CSVRenderer) Render(ctx context.Context, report *models.GeneratedReport, tpl *models.ReportTemplate) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	var output strings.Builder
	writer := csv.NewWriter(&output)

	headers := []string{"Metric", "Value", "Baseline", "Change", "Change %"}
	if err := writer.Write(headers); err != nil {
		return "", 0, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, value := range report.Summary.Values {
		record := []string{value.DisplayName, "", "", "", ""}
		if value.Unavailable {
			record[1] = "unavailable"
		} else {
			record[1] = formatValue(value)
		}
		if value.Delta != nil {
			record[2] = fmt.Sprintf("%.4f", value.Delta.Baseline)
			record[3] = fmt.Sprintf("%.4f", value.Delta.Absolute)
			record[4] = fmt.Sprintf("%.2f", value.Delta.Percent)
		}
		if err := writer.Write(record); err != nil {
			return "", 0, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", 0, fmt.Errorf("CSV writer error: %w", err)
	}

	return writeArtifact(r.outputDir, report, "csv", []byte(output.String()))
}

// JSONRenderer writes the full report record as indented JSON.
type JSONRenderer struct {
	outputDir string
}

// NewJSONRenderer creates a JSON renderer writing under outputDir.
func NewJSONRenderer(outputDir string) *JSONRenderer {
	return &JSONRenderer{outputDir: outputDir}
}

func (r *JSONRenderer) Format() string { return "json" }

func (r *JSONRenderer) Render(ctx context.Context, report *models.GeneratedReport, tpl *models.ReportTemplate) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	payload := map[string]interface{}{
		"report_id":      report.ID,
		"template":       tpl.Name,
		"report_type":    tpl.Type,
		"period_start":   report.PeriodStart,
		"period_end":     report.PeriodEnd,
		"generated_at":   report.GeneratedAt,
		"metrics":        report.Summary.Values,
		"partial_data":   report.Summary.PartialData,
		"visualizations": tpl.Visualizations,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal report JSON: %w", err)
	}

	return writeArtifact(r.outputDir, report, "json", data)
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>Period: {{.PeriodStart}} &ndash; {{.PeriodEnd}}</p>
{{if .PartialData}}<p><em>Some metrics were unavailable when this report was generated.</em></p>{{end}}
<table border="1" cellpadding="4">
<tr><th>Metric</th><th>Value</th><th>Change</th></tr>
{{range .Rows}}<tr><td>{{.Name}}</td><td>{{.Value}}</td><td>{{.Change}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// HTMLRenderer writes a simple tabular HTML document.
type HTMLRenderer struct {
	outputDir string
}

// NewHTMLRenderer creates an HTML renderer writing under outputDir.
func NewHTMLRenderer(outputDir string) *HTMLRenderer {
	return &HTMLRenderer{outputDir: outputDir}
}

func (r *HTMLRenderer) Format() string { return "html" }

func (r *HTMLRenderer) Render(ctx context.Context, report *models.GeneratedReport, tpl *models.ReportTemplate) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	type row struct {
		Name   string
		Value  string
		Change string
	}
	rows := make([]row, 0, len(report.Summary.Values))
	for _, value := range report.Summary.Values {
		item := row{Name: value.DisplayName}
		if value.Unavailable {
			item.Value = "unavailable"
		} else {
			item.Value = formatValue(value)
		}
		if value.Delta != nil {
			item.Change = fmt.Sprintf("%+.2f%%", value.Delta.Percent)
		}
		rows = append(rows, item)
	}

	var output strings.Builder
	err := htmlReportTemplate.Execute(&output, map[string]interface{}{
		"Title":       tpl.Name,
		"PeriodStart": report.PeriodStart.Format("2006-01-02 15:04"),
		"PeriodEnd":   report.PeriodEnd.Format("2006-01-02 15:04"),
		"PartialData": report.Summary.PartialData,
		"Rows":        rows,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to execute HTML template: %w", err)
	}

	return writeArtifact(r.outputDir, report, "html", []byte(output.String()))
}

func formatValue(value models.MetricValue) string {
	switch value.Format {
	case models.FormatCurrency:
		return fmt.Sprintf("%.2f", value.Value)
	case models.FormatPercentage:
		return fmt.Sprintf("%.2f%%", value.Value)
	case models.FormatText:
		return value.Text
	default:
		return fmt.Sprintf("%g", value.Value)
	}
}

func writeArtifact(outputDir string, report *models.GeneratedReport, ext string, data []byte) (string, int64, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(outputDir, fmt.Sprintf("%s_%s.%s", report.TemplateID, report.ID, ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, int64(len(data)), nil
}
