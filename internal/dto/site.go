package dto

// SiteRequest is the payload for registering or editing a site.
type SiteRequest struct {
	Name             string   `json:"name" validate:"required,max=150"`
	Address          string   `json:"address" validate:"max=500"`
	Latitude         *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	RadiusMeters     *float64 `json:"radiusMeters" validate:"required,gt=0"`
	AllowedStartTime string   `json:"allowedStartTime" validate:"required,clock"`
	AllowedEndTime   string   `json:"allowedEndTime" validate:"required,clock"`
	Active           *bool    `json:"active"`
}

// SiteListQuery captures GET /sites query parameters.
type SiteListQuery struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}
