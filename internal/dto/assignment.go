package dto

// AssignRequest binds a student to a site.
type AssignRequest struct {
	StudentID   string   `json:"studentId" validate:"required"`
	SiteID      string   `json:"siteId" validate:"required"`
	StartDate   string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	AllowedDays []string `json:"allowedDays" validate:"required,min=1,dive,weekday"`
}

// UpdateAssignmentRequest edits the schedule of an assignment. Omitted fields keep their value.
type UpdateAssignmentRequest struct {
	StartDate   *string  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string  `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	AllowedDays []string `json:"allowedDays" validate:"omitempty,min=1,dive,weekday"`
}
