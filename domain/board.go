package domain

// Weekday columns in Monday-first order. "done" closes the board and is not
// week-scoped.
var WeekdayColumns = []string{
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
}

const ColumnDone = "done"

// AllColumns is the full valid column set in display order.
var AllColumns = append(append([]string{}, WeekdayColumns...), ColumnDone)

// WeekdayIndex maps a weekday column key to its Monday-based offset.
var WeekdayIndex = func() map[string]int {
	m := make(map[string]int, len(WeekdayColumns))
	for i, c := range WeekdayColumns {
		m[c] = i
	}
	return m
}()

// DefaultColors is the palette cycled through when people carry no color.
var DefaultColors = []string{
	"#E11D48",
	"#2563EB",
	"#059669",
	"#D97706",
	"#7C3AED",
	"#0E7490",
	"#BE123C",
	"#4F46E5",
	"#15803D",
}

// Person roles.
const (
	RoleAdult = "adult"
	RoleChild = "child"
)

// Person is one household member shown on task chips.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Role  string `json:"role"`
}

// Task is one cell on the weekly board. A task referencing a template is a
// materialized occurrence of that template; a task with a span id is one cell
// of a contiguous multi-day group.
type Task struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Assignees  []string `json:"assignees"`
	Column     string   `json:"column"`
	Order      int      `json:"order"`
	CreatedAt  string   `json:"created_at"`
	EndDate    string   `json:"end_date,omitempty"`
	TemplateID string   `json:"template_id,omitempty"`
	Fixed      bool     `json:"fixed,omitempty"`
	SpanID     string   `json:"span_id,omitempty"`
	SpanIndex  int      `json:"span_index,omitempty"`
	SpanTotal  int      `json:"span_total,omitempty"`
	WeekStart  string   `json:"week_start,omitempty"`

	// Virtual marks a projected future occurrence. Projections are built on
	// read and never stored, so the flag only ever appears in responses.
	Virtual bool `json:"virtual,omitempty"`
}

// Template is a bounded recurrence rule generating weekly occurrences.
type Template struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Assignees     []string `json:"assignees"`
	EndDate       string   `json:"end_date"`
	Weekdays      []string `json:"weekdays"`
	ExcludedDates []string `json:"excluded_dates,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

// Board is the aggregate root and the unit of persistence. UpdatedAt is an
// opaque version token assigned by the backend on every successful save.
type Board struct {
	People    []Person   `json:"people"`
	Tasks     []Task     `json:"tasks"`
	Templates []Template `json:"templates"`
	Settings  Settings   `json:"settings"`
	UpdatedAt string     `json:"updated_at,omitempty"`
}

// IsWeekdayColumn reports whether column is one of monday..sunday.
func IsWeekdayColumn(column string) bool {
	_, ok := WeekdayIndex[column]
	return ok
}

// ColumnRank returns the display position of a column, with unknown columns
// sorted last.
func ColumnRank(column string) int {
	for i, c := range AllColumns {
		if c == column {
			return i
		}
	}
	return len(AllColumns)
}
