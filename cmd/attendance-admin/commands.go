package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/internal/repository"
	"github.com/noah-isme/placement-attendance-api/internal/service"
	"github.com/noah-isme/placement-attendance-api/pkg/config"
	"github.com/noah-isme/placement-attendance-api/pkg/database"
	"github.com/noah-isme/placement-attendance-api/pkg/geo"
	"github.com/noah-isme/placement-attendance-api/pkg/holiday"
	"github.com/noah-isme/placement-attendance-api/pkg/logger"
)

var distanceCommand = &cli.Command{
	Name:      "distance",
	Usage:     "great-circle distance in metres between two points",
	ArgsUsage: "LAT1 LON1 LAT2 LON2",
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() != 4 {
			return errors.New("expected LAT1 LON1 LAT2 LON2")
		}
		var vals [4]float64
		for i := range vals {
			v, err := strconv.ParseFloat(cCtx.Args().Get(i), 64)
			if err != nil {
				return fmt.Errorf("argument %d: %w", i+1, err)
			}
			vals[i] = v
		}
		a := geo.Coordinate{Latitude: vals[0], Longitude: vals[1]}
		b := geo.Coordinate{Latitude: vals[2], Longitude: vals[3]}
		for _, c := range []geo.Coordinate{a, b} {
			if err := c.Validate(); err != nil {
				return err
			}
		}
		fmt.Fprintf(cCtx.App.Writer, "%.2f\n", geo.DistanceMeters(a, b))
		return nil
	},
}

var evaluateCommand = &cli.Command{
	Name:  "evaluate",
	Usage: "dry-run the verification engine against a site",
	Flags: []cli.Flag{
		flagTimezone,
		&cli.Float64Flag{Name: "site-lat", Required: true},
		&cli.Float64Flag{Name: "site-lon", Required: true},
		&cli.Float64Flag{Name: "radius", Value: 200, Usage: "Geofence radius in metres"},
		&cli.StringFlag{Name: "start", Value: "09:00"},
		&cli.StringFlag{Name: "end", Value: "18:00"},
		&cli.StringFlag{Name: "days", Value: "MON,TUE,WED,THU,FRI", Usage: "Comma separated allowed weekdays"},
		&cli.Float64Flag{Name: "lat", Required: true},
		&cli.Float64Flag{Name: "lon", Required: true},
		&cli.Float64Flag{Name: "accuracy", Value: 10},
		&cli.BoolFlag{Name: "photo", Usage: "Treat the report as carrying a photo"},
		&cli.TimestampFlag{Name: "at", Layout: "2006-01-02T15:04", Usage: "Wall clock time of the report, defaults to now"},
	},
	Action: func(cCtx *cli.Context) error {
		location, err := time.LoadLocation(cCtx.String(flagTimezone.Name))
		if err != nil {
			return err
		}
		engine, err := service.NewVerificationEngine(service.DefaultThresholds(), location)
		if err != nil {
			return err
		}
		start, err := models.ParseClock(cCtx.String("start"))
		if err != nil {
			return err
		}
		end, err := models.ParseClock(cCtx.String("end"))
		if err != nil {
			return err
		}
		var days []string
		for _, raw := range strings.Split(cCtx.String("days"), ",") {
			day, err := models.ParseWeekday(raw)
			if err != nil {
				return err
			}
			days = append(days, string(day))
		}
		now := time.Now().In(location)
		if at := cCtx.Timestamp("at"); at != nil {
			now = time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), at.Minute(), 0, 0, location)
		}

		decision := engine.Evaluate(service.Evaluation{
			Report: service.LocationReport{
				Latitude:       cCtx.Float64("lat"),
				Longitude:      cCtx.Float64("lon"),
				AccuracyMeters: cCtx.Float64("accuracy"),
				HasPhoto:       cCtx.Bool("photo"),
			},
			Site: models.Site{
				Latitude:         cCtx.Float64("site-lat"),
				Longitude:        cCtx.Float64("site-lon"),
				RadiusMeters:     cCtx.Float64("radius"),
				AllowedStartTime: start,
				AllowedEndTime:   end,
				Active:           true,
			},
			Assignment: models.Assignment{AllowedDays: days},
			Now:        now,
		})
		return printJSON(cCtx, map[string]interface{}{
			"outcome":          decision.Outcome,
			"reason":           decision.Reason,
			"message":          decision.Message,
			"distanceMeters":   decision.DistanceMeters,
			"suspicious":       decision.Suspicious,
			"suspiciousReason": decision.SuspiciousReason,
		})
	},
}

var holidaysCommand = &cli.Command{
	Name:  "holidays",
	Usage: "inspect the holiday calendar",
	Subcommands: []*cli.Command{
		{
			Name:  "validate",
			Usage: "parse a calendar file and list its entries",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", Value: "./config/holidays.yaml"},
				&cli.StringFlag{Name: "from", Usage: "YYYY-MM-DD"},
				&cli.StringFlag{Name: "to", Usage: "YYYY-MM-DD"},
			},
			Action: func(cCtx *cli.Context) error {
				calendar, err := holiday.Load(cCtx.String("file"))
				if err != nil {
					return err
				}
				from := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
				to := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
				if raw := cCtx.String("from"); raw != "" {
					if from, err = time.Parse(models.DateLayout, raw); err != nil {
						return err
					}
				}
				if raw := cCtx.String("to"); raw != "" {
					if to, err = time.Parse(models.DateLayout, raw); err != nil {
						return err
					}
				}
				entries, err := calendar.Between(cCtx.Context, from, to)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cCtx.App.Writer, "%s\t%-9s\t%s\n", e.Date.Format(models.DateLayout), e.Scope, e.Name)
				}
				fmt.Fprintf(cCtx.App.Writer, "%d holidays\n", len(entries))
				return nil
			},
		},
	},
}

var tokenCommand = &cli.Command{
	Name:        "token",
	Usage:       "access token utilities",
	Subcommands: []*cli.Command{tokenIssueCommand},
}

var tokenIssueCommand = &cli.Command{
	Name:  "issue",
	Usage: "issue an access token signed with JWT_SECRET",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "user", Required: true},
		&cli.StringFlag{Name: "role", Value: string(models.RoleStudent)},
		&cli.StringFlag{Name: "email"},
		&cli.StringFlag{Name: "name"},
		&cli.DurationFlag{Name: "ttl", Value: time.Hour},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		auth := service.NewAuthService(nil, nil, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: time.Hour,
			Issuer:            cfg.JWT.Issuer,
			Audience:          cfg.JWT.Audience,
		})
		token, expires, err := auth.Issue(service.Identity{
			UserID:   cCtx.String("user"),
			Role:     models.UserRole(strings.ToUpper(cCtx.String("role"))),
			Email:    cCtx.String("email"),
			FullName: cCtx.String("name"),
		}, cCtx.Duration("ttl"))
		if err != nil {
			return err
		}
		return printJSON(cCtx, map[string]interface{}{"token": token, "expiresAt": expires})
	},
}

var reportCommand = &cli.Command{
	Name:  "report",
	Usage: "build an attendance report straight from the database",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "from", Required: true},
		&cli.StringFlag{Name: "to", Required: true},
		&cli.StringFlag{Name: "mode", Value: service.ReportModeGrouped},
		&cli.StringFlag{Name: "format", Value: "csv", Usage: "json, csv or pdf"},
		&cli.StringFlag{Name: "batch"},
		&cli.StringFlag{Name: "course"},
		&cli.StringFlag{Name: "branch"},
		&cli.StringFlag{Name: "site"},
		&cli.StringFlag{Name: "out", Usage: "Output file, defaults to the generated name"},
	},
	Action: func(cCtx *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logr, err := logger.New(cfg)
		if err != nil {
			return err
		}
		defer logr.Sync() //nolint:errcheck

		reports, err := buildReportService(cfg, logr)
		if err != nil {
			return err
		}
		params, err := reports.ParseQuery(dto.ReportQuery{
			From:   cCtx.String("from"),
			To:     cCtx.String("to"),
			Mode:   cCtx.String("mode"),
			Format: cCtx.String("format"),
			Batch:  cCtx.String("batch"),
			Course: cCtx.String("course"),
			Branch: cCtx.String("branch"),
			SiteID: cCtx.String("site"),
		})
		if err != nil {
			return err
		}
		if params.Format == "json" {
			return writeJSONReport(cCtx.Context, cCtx, reports, params)
		}

		file, err := service.NewExportService(reports, logr).Export(cCtx.Context, params)
		if err != nil {
			return err
		}
		out := cCtx.String("out")
		if out == "" {
			out = file.Filename
		}
		if err := os.WriteFile(out, file.Data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cCtx.App.Writer, "wrote %s (%d bytes)\n", out, len(file.Data))
		return nil
	},
}

func buildReportService(cfg *config.Config, logr *zap.Logger) (*service.ReportService, error) {
	location, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		return nil, err
	}
	calendar, err := holiday.Load(cfg.Holidays.File)
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	return service.NewReportService(
		repository.NewReportRepository(db),
		calendar,
		nil,
		nil,
		nil,
		nil,
		location,
		service.ReportServiceConfig{MaxRangeDays: cfg.Reports.MaxRangeDays},
		logr,
	), nil
}

func writeJSONReport(ctx context.Context, cCtx *cli.Context, reports *service.ReportService, params service.ReportParams) error {
	if params.Mode == service.ReportModeDetail {
		detail, err := reports.Detail(ctx, params)
		if err != nil {
			return err
		}
		return printJSON(cCtx, detail)
	}
	summary, err := reports.Aggregate(ctx, params)
	if err != nil {
		return err
	}
	return printJSON(cCtx, summary)
}

func printJSON(cCtx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(cCtx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
