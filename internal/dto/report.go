package dto

// ReportQuery captures GET /report parameters.
type ReportQuery struct {
	From      string `form:"from" validate:"required,datetime=2006-01-02"`
	To        string `form:"to" validate:"required,datetime=2006-01-02"`
	Mode      string `form:"mode" validate:"omitempty,oneof=grouped detail"`
	Format    string `form:"format" validate:"omitempty,oneof=json csv pdf"`
	Batch     string `form:"batch"`
	Course    string `form:"course"`
	Branch    string `form:"branch"`
	Year      *int   `form:"year" validate:"omitempty,gte=1"`
	Semester  *int   `form:"semester" validate:"omitempty,gte=1"`
	SiteID    string `form:"siteId"`
	StudentID string `form:"studentId"`
}
