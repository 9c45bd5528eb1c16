package models

// Student is the read-only projection of the institution's student directory.
type Student struct {
	ID         string `db:"id" json:"id"`
	FullName   string `db:"full_name" json:"fullName"`
	RollNumber string `db:"roll_number" json:"rollNumber"`
	Batch      string `db:"batch" json:"batch"`
	Course     string `db:"course" json:"course"`
	Branch     string `db:"branch" json:"branch"`
	Year       int    `db:"year" json:"year"`
	Semester   int    `db:"semester" json:"semester"`
	Active     bool   `db:"active" json:"active"`
}

// GroupKey is the cohort a student is aggregated under.
type GroupKey struct {
	Batch    string `json:"batch"`
	Course   string `json:"course"`
	Branch   string `json:"branch"`
	Year     int    `json:"year"`
	Semester int    `json:"semester"`
}

// Group returns the student's aggregation key.
func (s Student) Group() GroupKey {
	return GroupKey{Batch: s.Batch, Course: s.Course, Branch: s.Branch, Year: s.Year, Semester: s.Semester}
}
