package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
)

func newTestExportService() *ExportService {
	reports := newTestReportService(&snapshotStub{snapshot: reportSnapshot()}, diwali(), nil)
	return NewExportService(reports, zap.NewNop())
}

func TestExportGroupedCSV(t *testing.T) {
	params := reportParams("2026-10-12", "2026-10-17")
	params.Format = "csv"

	out, err := newTestExportService().Export(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "attendance-grouped-2026-10-12-2026-10-17.csv", out.Filename)
	assert.Equal(t, "text/csv", out.ContentType)

	lines := strings.Split(strings.TrimSpace(string(out.Data)), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Batch,Course,Branch,Year,Semester,Students,Present,Absent,Unmarked,Suspicious,Incomplete", strings.TrimSpace(lines[0]))
	assert.Equal(t, "2026,BTECH,CSE,4,7,2,2,2,6,1,1", strings.TrimSpace(lines[1]))
}

func TestExportDetailPDF(t *testing.T) {
	params := reportParams("2026-10-12", "2026-10-17")
	params.Mode, params.Format = ReportModeDetail, "pdf"

	out, err := newTestExportService().Export(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Data, []byte("%PDF")))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	params := reportParams("2026-10-12", "2026-10-17")
	params.Format = "json"
	_, err := newTestExportService().Export(context.Background(), params)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
