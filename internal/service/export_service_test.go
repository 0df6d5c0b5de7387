package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/models"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
	"github.com/itsmahammad/UniversityERP/pkg/export"
)

type failingPDF struct{}

func (failingPDF) Render(data export.Dataset, title string) ([]byte, error) {
	return nil, errors.New("font missing")
}

func (failingPDF) ContentType() string { return "application/pdf" }

func sampleImportResult() *models.ImportResult {
	return &models.ImportResult{
		TotalRows:    3,
		CreatedCount: 2,
		FailedCount:  1,
		Rows: []models.ImportRow{
			{RowNumber: 1, Success: true, Code: "AB12345", FullName: "Aysel", Email: "ab12345@uni.local", Role: models.RoleTeacher, CredentialsEmailed: true},
			{RowNumber: 2, Code: "CD12345", FullName: "Cavid", Error: msgUnknownRole},
			{RowNumber: 3, Success: true, Code: "EF12345", FullName: "Elnur", Email: "ef12345@uni.local", Role: models.RoleStudent, TempPassword: "Tmp#Pass123abc"},
		},
	}
}

func TestParseReportFormat(t *testing.T) {
	for raw, want := range map[string]string{"": ReportFormatJSON, "CSV": ReportFormatCSV, " pdf ": ReportFormatPDF, "json": ReportFormatJSON} {
		got, err := ParseReportFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseReportFormat("xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc := NewExportService(zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC) }

	report, err := svc.RenderImportReport(sampleImportResult(), ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "user-import-20260901-083000.csv", report.Filename)
	assert.True(t, strings.HasPrefix(report.ContentType, "text/csv"))

	lines := strings.Split(strings.TrimSpace(string(report.Body)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Temporary password")
	assert.Contains(t, lines[1], "credentials emailed")
	assert.Contains(t, lines[2], "failed")
	assert.Contains(t, lines[2], msgUnknownRole)
	assert.Contains(t, lines[3], "Tmp#Pass123abc")
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc := NewExportService(nil, nil, nil)

	report, err := svc.RenderImportReport(sampleImportResult(), ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", report.ContentType)
	assert.True(t, bytes.HasPrefix(report.Body, []byte("%PDF")))
}

func TestExportServiceRenderFailure(t *testing.T) {
	svc := NewExportService(nil, nil, failingPDF{})

	_, err := svc.RenderImportReport(sampleImportResult(), ReportFormatPDF)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
