package board

import (
	"time"

	"choreboard/domain"
)

// WeeklyRefresh is the scheduled board reset. It drops done and expired
// items, clears weekday tasks from weeks behind the current one, and rebuilds
// the current week's occurrences from still-active templates. Returns the
// refreshed board and the number of tasks it holds.
func WeeklyRefresh(b domain.Board, today time.Time) (domain.Board, int) {
	todayISO := domain.FormatDate(today)
	currentMonday := domain.FormatDate(domain.WeekStart(today))

	active := make([]domain.Template, 0, len(b.Templates))
	for _, tpl := range b.Templates {
		if tpl.EndDate < todayISO || len(tpl.Weekdays) == 0 {
			continue
		}
		active = append(active, tpl)
	}

	kept := make([]domain.Task, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		if t.Column == domain.ColumnDone {
			continue
		}
		if t.EndDate != "" && t.EndDate < todayISO {
			continue
		}
		if domain.IsWeekdayColumn(t.Column) && t.WeekStart != "" && t.WeekStart < currentMonday {
			continue
		}
		// Template occurrences are rebuilt below.
		if t.TemplateID != "" {
			continue
		}
		kept = append(kept, t)
	}

	for _, tpl := range active {
		kept = append(kept, MaterializeCurrentWeek(tpl, today)...)
	}

	b.Templates = active
	b.Tasks = kept
	return b, len(kept)
}

// RemoveDoneTasks clears the done column. Returns the number of removed
// tasks.
func RemoveDoneTasks(b domain.Board) (domain.Board, int) {
	remaining := make([]domain.Task, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		if t.Column == domain.ColumnDone {
			continue
		}
		remaining = append(remaining, t)
	}
	removed := len(b.Tasks) - len(remaining)
	b.Tasks = remaining
	return b, removed
}
