package board

import (
	"sort"
	"time"

	"choreboard/domain"
)

// SpanGroup returns every task sharing the task's span id and week start,
// sorted by weekday position. A task without a span id yields itself only.
// Group-affecting operations must be applied to the whole returned set.
func SpanGroup(b domain.Board, task domain.Task) []domain.Task {
	if task.SpanID == "" {
		return []domain.Task{task}
	}
	members := []domain.Task{}
	for _, t := range b.Tasks {
		if t.SpanID == task.SpanID && t.WeekStart == task.WeekStart {
			members = append(members, t)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return domain.ColumnRank(members[i].Column) < domain.ColumnRank(members[j].Column)
	})
	return members
}

// validateSpanWeekdays checks the span creation rule: at least two weekdays,
// contiguous in Monday through Sunday order. Input must already be normalized into
// weekday order.
func validateSpanWeekdays(weekdays []string) error {
	if len(weekdays) < 2 {
		return errValidation("a span needs at least two weekdays")
	}
	prev := -1
	for _, day := range weekdays {
		idx, ok := domain.WeekdayIndex[day]
		if !ok {
			return errValidation("invalid span weekday %q", day)
		}
		if prev >= 0 && idx != prev+1 {
			return errValidation("span weekdays must be contiguous")
		}
		prev = idx
	}
	return nil
}

// buildSpanTasks creates the member tasks of a new span group for the current
// week. Indices are dense, zero-based and follow sorted weekday position.
func buildSpanTasks(title string, assignees []string, endDate string, weekdays []string, today time.Time) ([]domain.Task, error) {
	days := normalizeWeekdays(weekdays)
	if err := validateSpanWeekdays(days); err != nil {
		return nil, err
	}

	spanID := domain.NewSpanID()
	weekStart := domain.FormatDate(domain.WeekStart(today))
	created := domain.NowStamp()
	out := make([]domain.Task, 0, len(days))
	for i, day := range days {
		out = append(out, domain.Task{
			ID:        domain.NewTaskID(),
			Title:     title,
			Assignees: append([]string{}, assignees...),
			Column:    day,
			Order:     0,
			CreatedAt: created,
			EndDate:   endDate,
			SpanID:    spanID,
			SpanIndex: i,
			SpanTotal: len(days),
			WeekStart: weekStart,
		})
	}
	return out, nil
}

// deleteSpanGroup removes every member of the task's span group and nothing
// else.
func deleteSpanGroup(b domain.Board, task domain.Task) domain.Board {
	tasks := make([]domain.Task, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		if t.SpanID == task.SpanID && t.WeekStart == task.WeekStart {
			continue
		}
		tasks = append(tasks, t)
	}
	b.Tasks = tasks
	return b
}
