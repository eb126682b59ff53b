package board

import (
	"time"

	"choreboard/domain"
)

// MaterializeCurrentWeek emits one concrete task per remaining weekday of the
// template in the week containing today. Dates before today, past the end
// date or explicitly excluded are skipped. No retroactive creation.
func MaterializeCurrentWeek(tpl domain.Template, today time.Time) []domain.Task {
	end, ok := domain.ParseDate(tpl.EndDate)
	if !ok {
		return nil
	}
	weekStart := domain.WeekStart(today)
	todayISO := domain.FormatDate(today)
	created := domain.NowStamp()

	out := []domain.Task{}
	for _, weekday := range tpl.Weekdays {
		day, ok := domain.WeekdayDate(weekStart, weekday)
		if !ok {
			continue
		}
		iso := domain.FormatDate(day)
		if iso < todayISO || day.After(end) || containsString(tpl.ExcludedDates, iso) {
			continue
		}
		out = append(out, domain.Task{
			ID:         domain.NewTaskID(),
			Title:      tpl.Title,
			Assignees:  append([]string{}, tpl.Assignees...),
			Column:     weekday,
			Order:      0,
			CreatedAt:  created,
			EndDate:    tpl.EndDate,
			TemplateID: tpl.ID,
			Fixed:      true,
			WeekStart:  domain.FormatDate(weekStart),
		})
	}
	return out
}

// DeleteOccurrence removes a single materialized occurrence and records its
// date in the template's excluded_dates so the weekly rebuild and future
// projections skip it. The template and its other occurrences are untouched.
// Occurrences already in done carry no week, so they are removed without an
// exclusion.
func DeleteOccurrence(b domain.Board, taskID string) (domain.Board, error) {
	task, ok := findTask(b.Tasks, taskID)
	if !ok {
		return b, errValidation("task %s not found", taskID)
	}
	if task.TemplateID == "" {
		return b, errValidation("task %s is not a template occurrence", taskID)
	}
	if task.Column == domain.ColumnDone || task.WeekStart == "" {
		// Completion cleared the week, so there is no date left to exclude.
		// Drop just this instance.
		tasks := make([]domain.Task, 0, len(b.Tasks))
		for _, t := range b.Tasks {
			if t.ID == task.ID {
				continue
			}
			tasks = append(tasks, t)
		}
		b.Tasks = tasks
		return b, nil
	}
	ws, ok := domain.ParseDate(task.WeekStart)
	if !ok {
		return b, errValidation("occurrence %s has no week", taskID)
	}
	day, ok := domain.WeekdayDate(ws, task.Column)
	if !ok {
		return b, errValidation("occurrence %s is not on a weekday column", taskID)
	}
	dayISO := domain.FormatDate(day)

	templates := make([]domain.Template, 0, len(b.Templates))
	for _, tpl := range b.Templates {
		if tpl.ID == task.TemplateID && !containsString(tpl.ExcludedDates, dayISO) {
			tpl.ExcludedDates = append(append([]string{}, tpl.ExcludedDates...), dayISO)
		}
		templates = append(templates, tpl)
	}

	tasks := make([]domain.Task, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		if t.TemplateID == task.TemplateID && t.WeekStart == task.WeekStart && t.Column == task.Column {
			continue
		}
		tasks = append(tasks, t)
	}

	b.Templates = templates
	b.Tasks = tasks
	return b, nil
}

// DeleteSeries removes a template and every task referencing it, across all
// weeks.
func DeleteSeries(b domain.Board, templateID string) (domain.Board, error) {
	found := false
	templates := make([]domain.Template, 0, len(b.Templates))
	for _, tpl := range b.Templates {
		if tpl.ID == templateID {
			found = true
			continue
		}
		templates = append(templates, tpl)
	}
	if !found {
		return b, errValidation("template %s not found", templateID)
	}

	tasks := make([]domain.Task, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		if t.TemplateID == templateID {
			continue
		}
		tasks = append(tasks, t)
	}

	b.Templates = templates
	b.Tasks = tasks
	return b, nil
}

func findTask(tasks []domain.Task, id string) (domain.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func findTemplate(templates []domain.Template, id string) (domain.Template, bool) {
	for _, tpl := range templates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return domain.Template{}, false
}
