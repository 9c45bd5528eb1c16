package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/export"
)

type reportSource interface {
	Aggregate(ctx context.Context, params ReportParams) (*models.ReportSummary, error)
	Detail(ctx context.Context, params ReportParams) (*models.ReportDetail, error)
}

// ExportResult is a rendered report file.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders reports as CSV or PDF tables.
type ExportService struct {
	reports reportSource
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(reports reportSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{reports: reports, logger: logger}
}

// Export renders params in the requested file format.
func (s *ExportService) Export(ctx context.Context, params ReportParams) (*ExportResult, error) {
	format := export.Format(params.Format)
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}

	var table export.Table
	switch params.Mode {
	case ReportModeDetail:
		detail, err := s.reports.Detail(ctx, params)
		if err != nil {
			return nil, err
		}
		table = detailTable(detail)
	default:
		summary, err := s.reports.Aggregate(ctx, params)
		if err != nil {
			return nil, err
		}
		table = summaryTable(summary)
	}

	data, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	filename := fmt.Sprintf("attendance-%s-%s-%s.%s",
		params.Mode,
		params.Range.From.Format(models.DateLayout),
		params.Range.To.Format(models.DateLayout),
		format,
	)
	s.logger.Info("report exported", zap.String("file", filename), zap.Int("bytes", len(data)))
	return &ExportResult{Filename: filename, ContentType: format.ContentType(), Data: data}, nil
}

var tallyColumns = []export.Column{
	{Key: "present", Label: "Present"},
	{Key: "absent", Label: "Absent"},
	{Key: "unmarked", Label: "Unmarked"},
	{Key: "suspicious", Label: "Suspicious"},
	{Key: "incomplete", Label: "Incomplete"},
}

func summaryTable(summary *models.ReportSummary) export.Table {
	cols := []export.Column{
		{Key: "batch", Label: "Batch"},
		{Key: "course", Label: "Course"},
		{Key: "branch", Label: "Branch"},
		{Key: "year", Label: "Year", Width: 0.6},
		{Key: "semester", Label: "Semester", Width: 0.8},
		{Key: "students", Label: "Students", Width: 0.8},
	}
	table := export.Table{
		Title:    "Placement attendance summary",
		Subtitle: periodLine(summary.From, summary.To, summary.TotalWorkingDays),
		Columns:  append(cols, tallyColumns...),
		Footer:   holidayFooter(summary.PublicHolidays, summary.InstituteHolidays),
	}
	for _, g := range summary.Groups {
		row := tallyRow(g.Totals)
		row["batch"] = g.Batch
		row["course"] = g.Course
		row["branch"] = g.Branch
		row["year"] = strconv.Itoa(g.Year)
		row["semester"] = strconv.Itoa(g.Semester)
		row["students"] = strconv.Itoa(g.Students)
		table.Rows = append(table.Rows, row)
	}
	return table
}

func detailTable(detail *models.ReportDetail) export.Table {
	cols := []export.Column{
		{Key: "roll", Label: "Roll No"},
		{Key: "name", Label: "Name", Width: 1.6},
		{Key: "batch", Label: "Batch"},
		{Key: "course", Label: "Course"},
		{Key: "branch", Label: "Branch"},
	}
	table := export.Table{
		Title:    "Placement attendance by student",
		Subtitle: periodLine(detail.From, detail.To, detail.TotalWorkingDays),
		Columns:  append(cols, tallyColumns...),
		Footer:   holidayFooter(detail.PublicHolidays, detail.InstituteHolidays),
	}
	for _, s := range detail.Students {
		row := tallyRow(s.Totals)
		row["roll"] = s.RollNumber
		row["name"] = s.FullName
		row["batch"] = s.Batch
		row["course"] = s.Course
		row["branch"] = s.Branch
		table.Rows = append(table.Rows, row)
	}
	return table
}

func tallyRow(t models.Tally) map[string]string {
	return map[string]string{
		"present":    strconv.Itoa(t.Present),
		"absent":     strconv.Itoa(t.Absent),
		"unmarked":   strconv.Itoa(t.Unmarked),
		"suspicious": strconv.Itoa(t.Suspicious),
		"incomplete": strconv.Itoa(t.Incomplete),
	}
}

func periodLine(from, to time.Time, workingDays int) string {
	return fmt.Sprintf("%s to %s, %d working days", from.Format(models.DateLayout), to.Format(models.DateLayout), workingDays)
}

func holidayFooter(public, institute []models.HolidayView) []string {
	var lines []string
	for _, h := range append(append([]models.HolidayView{}, public...), institute...) {
		lines = append(lines, fmt.Sprintf("%s %s (%s)", h.Date.Format(models.DateLayout), h.Name, h.Scope))
	}
	return lines
}
