package models

import (
	"time"

	"github.com/noah-isme/placement-attendance-api/pkg/geo"
)

// Site is a registered placement location enclosed by a circular geofence.
type Site struct {
	ID               string     `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Address          string     `db:"address" json:"address"`
	Latitude         float64    `db:"latitude" json:"latitude"`
	Longitude        float64    `db:"longitude" json:"longitude"`
	RadiusMeters     float64    `db:"radius_meters" json:"radiusMeters"`
	AllowedStartTime ClockTime  `db:"allowed_start_time" json:"allowedStartTime"`
	AllowedEndTime   ClockTime  `db:"allowed_end_time" json:"allowedEndTime"`
	Active           bool       `db:"active" json:"active"`
	DeactivatedAt    *time.Time `db:"deactivated_at" json:"deactivatedAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// Center returns the geofence centre.
func (s Site) Center() geo.Coordinate {
	return geo.Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// WithinWindow reports whether clock lies in the inclusive allowed window.
func (s Site) WithinWindow(clock ClockTime) bool {
	return clock >= s.AllowedStartTime && clock <= s.AllowedEndTime
}

// ActiveOn reports whether the site accepted attendance on date.
func (s Site) ActiveOn(date time.Time) bool {
	if s.Active {
		return true
	}
	if s.DeactivatedAt == nil {
		return false
	}
	return DateOf(date).Before(DateOf(*s.DeactivatedAt))
}

// SiteFilter captures listing options for sites.
type SiteFilter struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}
