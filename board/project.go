package board

import (
	"fmt"
	"time"

	"choreboard/domain"
)

// ProjectedOccurrences derives the virtual occurrence of tpl for one weekday
// in a future week. The current week (weekOffset 0) is never projected; its
// occurrences are materialized at template creation or edit time. The result
// is empty when the weekday is not part of the template, falls past the end
// date or is explicitly excluded.
func ProjectedOccurrences(tpl domain.Template, weekday string, weekOffset int, today time.Time) []domain.Task {
	if weekOffset <= 0 {
		return nil
	}
	if !containsString(tpl.Weekdays, weekday) {
		return nil
	}
	weekStart := domain.WeekStartOffset(today, weekOffset)
	day, ok := domain.WeekdayDate(weekStart, weekday)
	if !ok {
		return nil
	}
	end, ok := domain.ParseDate(tpl.EndDate)
	if !ok || day.After(end) {
		return nil
	}
	iso := domain.FormatDate(day)
	if containsString(tpl.ExcludedDates, iso) {
		return nil
	}

	return []domain.Task{{
		ID:         fmt.Sprintf("virtual_%s_%s_%d", tpl.ID, weekday, weekOffset),
		Title:      tpl.Title,
		Assignees:  append([]string{}, tpl.Assignees...),
		Column:     weekday,
		Order:      0,
		CreatedAt:  tpl.CreatedAt,
		EndDate:    tpl.EndDate,
		TemplateID: tpl.ID,
		Fixed:      true,
		WeekStart:  domain.FormatDate(weekStart),
		Virtual:    true,
	}}
}

// VisibleTasks assembles the task set for one column and week. Persisted
// instances for the exact week start are merged with virtual projections for
// templates that have no persisted instance in that week; persisted always
// wins. The done column ignores week scoping.
func VisibleTasks(b domain.Board, column string, weekOffset int, today time.Time) []domain.Task {
	if column == domain.ColumnDone {
		out := tasksInColumn(b.Tasks, column, "")
		sortTasks(out)
		return out
	}
	if !domain.IsWeekdayColumn(column) {
		return nil
	}

	weekStartISO := domain.FormatDate(domain.WeekStartOffset(today, weekOffset))
	out := tasksInColumn(b.Tasks, column, weekStartISO)

	if weekOffset > 0 {
		materialized := make(map[string]struct{})
		for _, t := range b.Tasks {
			if t.TemplateID != "" && t.WeekStart == weekStartISO {
				materialized[t.TemplateID] = struct{}{}
			}
		}
		for _, tpl := range b.Templates {
			if _, ok := materialized[tpl.ID]; ok {
				continue
			}
			out = append(out, ProjectedOccurrences(tpl, column, weekOffset, today)...)
		}
	}

	sortTasks(out)
	return out
}

func tasksInColumn(tasks []domain.Task, column, weekStart string) []domain.Task {
	out := []domain.Task{}
	for _, t := range tasks {
		if t.Column != column {
			continue
		}
		if weekStart != "" && t.WeekStart != weekStart {
			continue
		}
		out = append(out, t)
	}
	return out
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
