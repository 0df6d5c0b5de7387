package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/models"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
	"github.com/itsmahammad/UniversityERP/pkg/export"
)

// Import report formats.
const (
	ReportFormatJSON = "json"
	ReportFormatCSV  = "csv"
	ReportFormatPDF  = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

// RenderedReport is a downloadable import report.
type RenderedReport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders import results as credential sheets for manual
// distribution.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ParseReportFormat normalises the requested format. Empty means JSON.
func ParseReportFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ReportFormatJSON:
		return ReportFormatJSON, nil
	case ReportFormatCSV:
		return ReportFormatCSV, nil
	case ReportFormatPDF:
		return ReportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be json, csv or pdf")
	}
}

// RenderImportReport renders result in the csv or pdf format.
func (s *ExportService) RenderImportReport(result *models.ImportResult, format string) (*RenderedReport, error) {
	if result == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to render")
	}
	dataset := importDataset(result)
	stamp := s.now().UTC().Format("20060102-150405")

	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case ReportFormatCSV:
		body, err = s.csv.Render(dataset)
		contentType = s.csv.ContentType()
	case ReportFormatPDF:
		title := fmt.Sprintf("User import: %d created, %d failed", result.CreatedCount, result.FailedCount)
		body, err = s.pdf.Render(dataset, title)
		contentType = s.pdf.ContentType()
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if err != nil {
		s.logger.Error("import report rendering failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render import report")
	}

	return &RenderedReport{
		Filename:    fmt.Sprintf("user-import-%s.%s", stamp, format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func importDataset(result *models.ImportResult) export.Dataset {
	columns := []export.Column{
		{Key: "row", Title: "Row", Width: 0.5},
		{Key: "status", Title: "Status", Width: 0.8},
		{Key: "code", Title: "Code", Width: 1},
		{Key: "full_name", Title: "Full name", Width: 2},
		{Key: "email", Title: "Login email", Width: 2},
		{Key: "role", Title: "Role", Width: 1.2},
		{Key: "temp_password", Title: "Temporary password", Width: 1.5},
		{Key: "note", Title: "Note", Width: 2.5},
	}

	rows := make([]map[string]string, 0, len(result.Rows))
	for _, r := range result.Rows {
		status := "failed"
		note := r.Error
		if r.Success {
			status = "created"
			switch {
			case r.CredentialsEmailed:
				note = "credentials emailed"
			case r.Warning != "":
				note = r.Warning
			}
		}
		rows = append(rows, map[string]string{
			"row":           strconv.Itoa(r.RowNumber),
			"status":        status,
			"code":          r.Code,
			"full_name":     r.FullName,
			"email":         r.Email,
			"role":          string(r.Role),
			"temp_password": r.TempPassword,
			"note":          note,
		})
	}
	return export.Dataset{Columns: columns, Rows: rows}
}
