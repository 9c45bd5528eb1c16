package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/holiday"
)

// Report modes.
const (
	ReportModeGrouped = "grouped"
	ReportModeDetail  = "detail"
)

type reportSnapshotter interface {
	Snapshot(ctx context.Context, span models.DateRange, filter models.ReportFilter) (*models.ReportSnapshot, error)
}

type holidayCalendar interface {
	Between(ctx context.Context, from, to time.Time) ([]holiday.Entry, error)
}

type photoLinker interface {
	SignedURL(rel string) string
}

// ReportParams is a validated report request.
type ReportParams struct {
	Range  models.DateRange
	Filter models.ReportFilter
	Mode   string
	Format string
}

// ReportServiceConfig tunes report limits.
type ReportServiceConfig struct {
	MaxRangeDays int
	CacheTTL     time.Duration
}

// ReportService aggregates attendance sessions over working days.
type ReportService struct {
	snapshots reportSnapshotter
	holidays  holidayCalendar
	photos    photoLinker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
	location  *time.Location
	now       func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(
	snapshots reportSnapshotter,
	holidays holidayCalendar,
	photos photoLinker,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	location *time.Location,
	cfg ReportServiceConfig,
	logger *zap.Logger,
) *ReportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 366
	}
	return &ReportService{
		snapshots: snapshots,
		holidays:  holidays,
		photos:    photos,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		location:  location,
		now:       time.Now,
	}
}

// ParseQuery validates query parameters into ReportParams.
func (s *ReportService) ParseQuery(q dto.ReportQuery) (ReportParams, error) {
	if err := s.validator.Struct(q); err != nil {
		return ReportParams{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report query")
	}
	from, _ := time.Parse(models.DateLayout, q.From)
	to, _ := time.Parse(models.DateLayout, q.To)
	span := models.NewDateRange(from, to)
	if span.Empty() {
		return ReportParams{}, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	if span.Days() > s.cfg.MaxRangeDays {
		return ReportParams{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.cfg.MaxRangeDays))
	}
	params := ReportParams{
		Range: span,
		Filter: models.ReportFilter{
			Batch:     strings.TrimSpace(q.Batch),
			Course:    strings.TrimSpace(q.Course),
			Branch:    strings.TrimSpace(q.Branch),
			Year:      q.Year,
			Semester:  q.Semester,
			SiteID:    strings.TrimSpace(q.SiteID),
			StudentID: strings.TrimSpace(q.StudentID),
		},
		Mode:   q.Mode,
		Format: q.Format,
	}
	if params.Mode == "" {
		params.Mode = ReportModeGrouped
	}
	if params.Format == "" {
		params.Format = "json"
	}
	return params, nil
}

// Aggregate produces per-group tallies for every working date of the range.
func (s *ReportService) Aggregate(ctx context.Context, params ReportParams) (*models.ReportSummary, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReport(ReportModeGrouped, time.Since(start)) }()

	key := s.cacheKey(ReportModeGrouped, params)
	var cached models.ReportSummary
	if s.cache.Get(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	in, err := s.load(ctx, params)
	if err != nil {
		return nil, err
	}

	groups := make(map[models.GroupKey]*models.GroupReport)
	for _, student := range in.snapshot.Students {
		gk := student.Group()
		group, ok := groups[gk]
		if !ok {
			group = &models.GroupReport{GroupKey: gk, Days: make([]models.DayTally, len(in.workingDays))}
			for i, d := range in.workingDays {
				group.Days[i].Date = d
			}
			groups[gk] = group
		}
		group.Students++
		for i, d := range in.workingDays {
			t := in.classify(student.ID, d)
			group.Days[i].Tally.Add(t)
			group.Totals.Add(t)
		}
	}

	summary := &models.ReportSummary{
		From:              params.Range.From,
		To:                params.Range.To,
		TotalWorkingDays:  len(in.workingDays),
		Groups:            make([]models.GroupReport, 0, len(groups)),
		PublicHolidays:    in.public,
		InstituteHolidays: in.institute,
		GeneratedAt:       s.now().UTC(),
	}
	for _, g := range groups {
		summary.Groups = append(summary.Groups, *g)
	}
	sort.Slice(summary.Groups, func(i, j int) bool {
		return groupLess(summary.Groups[i].GroupKey, summary.Groups[j].GroupKey)
	})

	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, nil
}

// Detail produces per-student totals and session rows.
func (s *ReportService) Detail(ctx context.Context, params ReportParams) (*models.ReportDetail, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReport(ReportModeDetail, time.Since(start)) }()

	key := s.cacheKey(ReportModeDetail, params)
	var cached models.ReportDetail
	if s.cache.Get(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	in, err := s.load(ctx, params)
	if err != nil {
		return nil, err
	}

	students := append([]models.Student(nil), in.snapshot.Students...)
	sort.Slice(students, func(i, j int) bool {
		if students[i].RollNumber != students[j].RollNumber {
			return students[i].RollNumber < students[j].RollNumber
		}
		return students[i].ID < students[j].ID
	})

	detail := &models.ReportDetail{
		From:              params.Range.From,
		To:                params.Range.To,
		TotalWorkingDays:  len(in.workingDays),
		Students:          make([]models.StudentReport, 0, len(students)),
		PublicHolidays:    in.public,
		InstituteHolidays: in.institute,
		GeneratedAt:       s.now().UTC(),
	}
	for _, student := range students {
		row := models.StudentReport{Student: student, Sessions: []models.SessionEntry{}}
		for _, d := range in.workingDays {
			row.Totals.Add(in.classify(student.ID, d))
		}
		for _, session := range in.sessionsOf(student.ID) {
			row.Sessions = append(row.Sessions, s.entry(session, in.sites))
		}
		detail.Students = append(detail.Students, row)
	}

	s.cache.Set(ctx, key, detail, s.cfg.CacheTTL)
	return detail, nil
}

func (s *ReportService) entry(session models.AttendanceSession, sites map[string]models.Site) models.SessionEntry {
	e := models.SessionEntry{
		SessionID:        session.ID,
		Date:             models.DateOf(session.Date),
		SiteID:           session.SiteID,
		SiteName:         sites[session.SiteID].Name,
		Status:           session.Status,
		CheckInAt:        session.CheckInAt,
		CheckOutAt:       session.CheckOutAt,
		CheckInDistance:  session.CheckInDistance,
		CheckOutDistance: session.CheckOutDistance,
		IsSuspicious:     session.IsSuspicious,
		SuspiciousReason: session.SuspiciousReason,
	}
	if session.CheckInPhotoPath != nil && s.photos != nil {
		e.CheckInPhotoURL = s.photos.SignedURL(*session.CheckInPhotoPath)
	}
	if session.CheckOutPhotoPath != nil && s.photos != nil {
		e.CheckOutPhotoURL = s.photos.SignedURL(*session.CheckOutPhotoPath)
	}
	return e
}

func (s *ReportService) load(ctx context.Context, params ReportParams) (*reportInput, error) {
	entries, err := s.holidays.Between(ctx, params.Range.From, params.Range.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday calendar")
	}
	snapshot, err := s.snapshots.Snapshot(ctx, params.Range, params.Filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attendance snapshot")
	}
	in := newReportInput(snapshot, params.Filter.SiteID, models.DateOf(s.now().In(s.location)))

	closed := make(map[time.Time]struct{}, len(entries))
	in.public = []models.HolidayView{}
	in.institute = []models.HolidayView{}
	for _, e := range entries {
		d := models.DateOf(e.Date)
		closed[d] = struct{}{}
		view := models.HolidayView{Date: d, Name: e.Name, Scope: string(e.Scope)}
		if e.Scope == holiday.ScopeInstitute {
			in.institute = append(in.institute, view)
		} else {
			in.public = append(in.public, view)
		}
	}
	in.workingDays = make([]time.Time, 0, params.Range.Days())
	for _, d := range params.Range.Dates() {
		if _, ok := closed[d]; !ok {
			in.workingDays = append(in.workingDays, d)
		}
	}

	s.logger.Debug("report input loaded",
		zap.String("from", params.Range.From.Format(models.DateLayout)),
		zap.String("to", params.Range.To.Format(models.DateLayout)),
		zap.Int("students", len(snapshot.Students)),
		zap.Int("sessions", len(snapshot.Sessions)),
		zap.Int("working_days", len(in.workingDays)),
	)
	return in, nil
}

func (s *ReportService) cacheKey(mode string, params ReportParams) string {
	f := params.Filter
	return ReportKey(
		mode,
		params.Range.From.Format(models.DateLayout),
		params.Range.To.Format(models.DateLayout),
		models.DateOf(s.now().In(s.location)).Format(models.DateLayout),
		f.Batch, f.Course, f.Branch, optionalInt(f.Year), optionalInt(f.Semester), f.SiteID, f.StudentID,
	)
}

// reportInput indexes one snapshot for per-day classification.
type reportInput struct {
	snapshot    *models.ReportSnapshot
	siteFilter  string
	today       time.Time
	sites       map[string]models.Site
	assignments map[string][]models.Assignment
	sessions    map[string]map[time.Time]models.AttendanceSession
	workingDays []time.Time
	public      []models.HolidayView
	institute   []models.HolidayView
}

func newReportInput(snapshot *models.ReportSnapshot, siteFilter string, today time.Time) *reportInput {
	in := &reportInput{
		snapshot:    snapshot,
		siteFilter:  siteFilter,
		today:       today,
		sites:       make(map[string]models.Site, len(snapshot.Sites)),
		assignments: make(map[string][]models.Assignment),
		sessions:    make(map[string]map[time.Time]models.AttendanceSession),
	}
	for _, site := range snapshot.Sites {
		in.sites[site.ID] = site
	}
	for _, a := range snapshot.Assignments {
		in.assignments[a.StudentID] = append(in.assignments[a.StudentID], a)
	}
	for id := range in.assignments {
		list := in.assignments[id]
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.After(list[j].CreatedAt)
			}
			return list[i].ID > list[j].ID
		})
	}
	for _, session := range snapshot.Sessions {
		byDate, ok := in.sessions[session.StudentID]
		if !ok {
			byDate = make(map[time.Time]models.AttendanceSession)
			in.sessions[session.StudentID] = byDate
		}
		byDate[models.DateOf(session.Date)] = session
	}
	return in
}

// classify returns the one-hot tally of a student's working date.
func (in *reportInput) classify(studentID string, date time.Time) models.Tally {
	if date.After(in.today) {
		return models.Tally{Unmarked: 1}
	}
	if session, ok := in.sessions[studentID][date]; ok {
		if in.siteFilter != "" && session.SiteID != in.siteFilter {
			return models.Tally{Unmarked: 1}
		}
		switch session.Status {
		case models.SessionStatusPresent:
			t := models.Tally{Present: 1}
			if session.IsSuspicious {
				t.Suspicious = 1
			}
			if session.CheckOutAt == nil {
				t.Incomplete = 1
			}
			return t
		case models.SessionStatusRejected:
			return models.Tally{Absent: 1}
		default:
			return models.Tally{Unmarked: 1}
		}
	}

	assignment := in.resolve(studentID, date)
	if assignment == nil || (in.siteFilter != "" && assignment.SiteID != in.siteFilter) {
		return models.Tally{Unmarked: 1}
	}
	if !assignment.AllowsDay(date) {
		return models.Tally{Unmarked: 1}
	}
	site, ok := in.sites[assignment.SiteID]
	if !ok || !site.ActiveOn(date) {
		return models.Tally{Unmarked: 1}
	}
	return models.Tally{Absent: 1}
}

func (in *reportInput) resolve(studentID string, date time.Time) *models.Assignment {
	for i, a := range in.assignments[studentID] {
		if a.ResolvableOn(date) {
			return &in.assignments[studentID][i]
		}
	}
	return nil
}

func (in *reportInput) sessionsOf(studentID string) []models.AttendanceSession {
	byDate := in.sessions[studentID]
	out := make([]models.AttendanceSession, 0, len(byDate))
	for _, session := range byDate {
		if in.siteFilter != "" && session.SiteID != in.siteFilter {
			continue
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func groupLess(a, b models.GroupKey) bool {
	switch {
	case a.Batch != b.Batch:
		return a.Batch < b.Batch
	case a.Course != b.Course:
		return a.Course < b.Course
	case a.Branch != b.Branch:
		return a.Branch < b.Branch
	case a.Year != b.Year:
		return a.Year < b.Year
	default:
		return a.Semester < b.Semester
	}
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
