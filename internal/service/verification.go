package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/pkg/geo"
)

// Outcome is the admission verdict for a reported event.
type Outcome string

const (
	OutcomeAdmit                        Outcome = "ADMIT"
	OutcomeReject                       Outcome = "REJECT"
	OutcomeRequireSecondaryVerification Outcome = "REQUIRE_SECONDARY_VERIFICATION"
)

// ReasonCode is the machine readable cause of a non-admit outcome.
type ReasonCode string

const (
	ReasonNone               ReasonCode = ""
	ReasonSiteInactive       ReasonCode = "SITE_INACTIVE"
	ReasonOutsideHours       ReasonCode = "OUTSIDE_ALLOWED_HOURS"
	ReasonDayNotPermitted    ReasonCode = "DAY_NOT_PERMITTED"
	ReasonOutsideGeofence    ReasonCode = "OUTSIDE_GEOFENCE"
	ReasonLowPrecision       ReasonCode = "LOW_PRECISION"
	ReasonNoActiveAssignment ReasonCode = "NO_ACTIVE_ASSIGNMENT"
	ReasonSiteNotAssigned    ReasonCode = "SITE_NOT_ASSIGNED"
)

// Thresholds are the tunable limits of the verification engine.
type Thresholds struct {
	// PrecisionThresholdMeters is the accuracy above which an admit needs a photo.
	PrecisionThresholdMeters float64
	// SuspiciousAccuracyMeters is the accuracy above which a report is flagged.
	SuspiciousAccuracyMeters float64
	// MaxTravelSpeedMps is the fastest plausible speed between check-in and check-out.
	MaxTravelSpeedMps float64
	// MinTravelDistanceMeters ignores GPS jitter below this displacement.
	MinTravelDistanceMeters float64
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PrecisionThresholdMeters: 100,
		SuspiciousAccuracyMeters: 250,
		MaxTravelSpeedMps:        42,
		MinTravelDistanceMeters:  500,
	}
}

// Validate checks the thresholds are positive and ordered.
func (t Thresholds) Validate() error {
	switch {
	case t.PrecisionThresholdMeters <= 0:
		return fmt.Errorf("precision threshold must be positive")
	case t.SuspiciousAccuracyMeters <= t.PrecisionThresholdMeters:
		return fmt.Errorf("suspicious accuracy threshold must exceed precision threshold")
	case t.MaxTravelSpeedMps <= 0:
		return fmt.Errorf("max travel speed must be positive")
	case t.MinTravelDistanceMeters < 0:
		return fmt.Errorf("min travel distance must not be negative")
	}
	return nil
}

// LocationReport is the untrusted evidence submitted by a device.
type LocationReport struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	HasPhoto       bool
	ClientIP       string
}

// Coordinate returns the reported position.
func (r LocationReport) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// PriorEvent is the admitted check-in a check-out is compared against.
type PriorEvent struct {
	Latitude  float64
	Longitude float64
	At        time.Time
	ClientIP  string
}

// Evaluation bundles everything a verdict depends on.
type Evaluation struct {
	Report     LocationReport
	Site       models.Site
	Assignment models.Assignment
	Now        time.Time
	// CheckIn is set when evaluating a check-out.
	CheckIn *PriorEvent
}

// Decision is the verdict plus the independent suspicion assessment.
type Decision struct {
	Outcome          Outcome    `json:"outcome"`
	Reason           ReasonCode `json:"reason,omitempty"`
	Message          string     `json:"message,omitempty"`
	DistanceMeters   float64    `json:"distanceMeters"`
	Suspicious       bool       `json:"-"`
	SuspiciousReason string     `json:"-"`
}

// VerificationEngine decides whether reported events are admissible. It holds
// no mutable state and is safe for concurrent use.
type VerificationEngine struct {
	thresholds Thresholds
	location   *time.Location
}

// NewVerificationEngine validates thresholds and binds the wall clock zone.
func NewVerificationEngine(thresholds Thresholds, location *time.Location) (*VerificationEngine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if location == nil {
		location = time.UTC
	}
	return &VerificationEngine{thresholds: thresholds, location: location}, nil
}

// Thresholds exposes the configured limits.
func (e *VerificationEngine) Thresholds() Thresholds {
	return e.thresholds
}

// Location exposes the zone used for hour and weekday checks.
func (e *VerificationEngine) Location() *time.Location {
	return e.location
}

// Evaluate runs the admission checks in order and scores suspicion.
func (e *VerificationEngine) Evaluate(in Evaluation) Decision {
	distance := geo.DistanceMeters(in.Report.Coordinate(), in.Site.Center())
	decision := Decision{DistanceMeters: distance}
	decision.Suspicious, decision.SuspiciousReason = e.suspicion(in)

	local := in.Now.In(e.location)
	switch {
	case !in.Site.Active:
		return reject(decision, ReasonSiteInactive, "site inactive")
	case !in.Site.WithinWindow(models.ClockOf(local)):
		return reject(decision, ReasonOutsideHours, "outside allowed hours")
	case !in.Assignment.AllowsDay(local):
		return reject(decision, ReasonDayNotPermitted, "day not permitted")
	case distance > in.Site.RadiusMeters:
		return reject(decision, ReasonOutsideGeofence, fmt.Sprintf("outside geofence, distance=%dm", int64(math.Round(distance))))
	}

	if in.Report.AccuracyMeters > e.thresholds.PrecisionThresholdMeters && !in.Report.HasPhoto {
		decision.Outcome = OutcomeRequireSecondaryVerification
		decision.Reason = ReasonLowPrecision
		decision.Message = "location accuracy too low, resubmit with a photo"
		return decision
	}
	decision.Outcome = OutcomeAdmit
	return decision
}

func reject(d Decision, reason ReasonCode, message string) Decision {
	d.Outcome = OutcomeReject
	d.Reason = reason
	d.Message = message
	return d
}

func (e *VerificationEngine) suspicion(in Evaluation) (bool, string) {
	var reasons []string
	if in.Report.AccuracyMeters > e.thresholds.SuspiciousAccuracyMeters {
		reasons = append(reasons, fmt.Sprintf("poor location accuracy (%.0fm)", in.Report.AccuracyMeters))
	}
	if prior := in.CheckIn; prior != nil {
		travelled := geo.DistanceMeters(geo.Coordinate{Latitude: prior.Latitude, Longitude: prior.Longitude}, in.Report.Coordinate())
		if travelled >= e.thresholds.MinTravelDistanceMeters {
			elapsed := in.Now.Sub(prior.At)
			if elapsed <= 0 || travelled/elapsed.Seconds() > e.thresholds.MaxTravelSpeedMps {
				reasons = append(reasons, fmt.Sprintf("implausible travel since check-in (%.0fm in %s)", travelled, elapsed.Round(time.Second)))
			}
		}
		if prior.ClientIP != "" && in.Report.ClientIP != "" && prior.ClientIP != in.Report.ClientIP {
			reasons = append(reasons, "client IP changed since check-in")
		}
	}
	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}
