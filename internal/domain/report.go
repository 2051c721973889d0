package domain

// Diff is one compared cell: an entity's metric on one spreadsheet day
// against the stored value for the aligned date.
type Diff struct {
	FieldKey      string
	DayLabel      string
	SystemValue   string
	ReportedValue string
	Different     bool
}

// EntityReport collects one spreadsheet entity's comparison outcome.
type EntityReport struct {
	Entity   string
	Matched  string
	Outcome  MatchOutcome
	Rows     []Diff
	Warnings []string
}

// DiffCount returns how many rows actually differ.
func (e EntityReport) DiffCount() int {
	n := 0
	for _, d := range e.Rows {
		if d.Different {
			n++
		}
	}
	return n
}

// CoverageReport is the pre-flight answer to "which spreadsheet days have a
// stored counterpart".
type CoverageReport struct {
	Available []string
	Missing   []string
	Rate      float64
}

// ReconcileSummary aggregates a whole reconciliation run.
type ReconcileSummary struct {
	Entities          int
	EntitiesWithDiffs int
	TotalDiffs        int
	Errors            int
	Warnings          int
}

// ReconcileReport is the full result handed to the report writer.
type ReconcileReport struct {
	Month    string // "2006-01"
	Coverage CoverageReport
	Entities []EntityReport
	Summary  ReconcileSummary
}
