package board

import (
	"sort"
	"strings"
	"time"

	"choreboard/domain"
)

// StatRow is one logical item in a person's week. Span members collapse into
// a single row listing every day they cover.
type StatRow struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Done       bool     `json:"done"`
	Fixed      bool     `json:"fixed"`
	TemplateID string   `json:"template_id,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Day        string   `json:"day,omitempty"`
	Days       []string `json:"days"`
}

// PersonStats summarizes one person's tasks for a selected week.
type PersonStats struct {
	PersonID   string    `json:"person_id"`
	PersonName string    `json:"person_name"`
	WeekStart  string    `json:"week_start"`
	WeekEnd    string    `json:"week_end"`
	WeekNumber int       `json:"week_number"`
	Total      int       `json:"total"`
	DoneCount  int       `json:"done"`
	Rows       []StatRow `json:"rows"`
}

// WeekBounds returns the selected week's start and end dates plus its ISO
// week number.
func WeekBounds(weekOffset int, today time.Time) (string, string, int) {
	start := domain.WeekStartOffset(today, weekOffset)
	_, week := start.ISOWeek()
	return domain.FormatDate(start), domain.FormatDate(start.AddDate(0, 0, 6)), week
}

// PersonWeekStats builds one person's task rows for the week weekOffset
// weeks from today. Done tasks count toward the week they were assigned to.
func PersonWeekStats(b domain.Board, personID string, weekOffset int, today time.Time) PersonStats {
	startISO, endISO, weekNumber := WeekBounds(weekOffset, today)

	stats := PersonStats{
		PersonID:   personID,
		WeekStart:  startISO,
		WeekEnd:    endISO,
		WeekNumber: weekNumber,
		Rows:       []StatRow{},
	}
	for _, p := range b.People {
		if p.ID == personID {
			stats.PersonName = p.Name
			break
		}
	}

	byKey := map[string]*StatRow{}
	keys := []string{}
	for _, t := range b.Tasks {
		if !containsString(t.Assignees, personID) {
			continue
		}
		if t.Column != domain.ColumnDone {
			if !domain.IsWeekdayColumn(t.Column) || t.WeekStart != startISO {
				continue
			}
		}

		key := t.ID
		if t.SpanID != "" {
			key = "span:" + t.SpanID + ":" + t.WeekStart
		}
		row, ok := byKey[key]
		if !ok {
			row = &StatRow{
				ID:         t.ID,
				Title:      t.Title,
				Fixed:      t.Fixed,
				TemplateID: t.TemplateID,
				EndDate:    t.EndDate,
				Days:       []string{},
			}
			byKey[key] = row
			keys = append(keys, key)
		}
		if t.Column == domain.ColumnDone {
			row.Done = true
		} else if !containsString(row.Days, t.Column) {
			row.Days = append(row.Days, t.Column)
		}
	}

	for _, key := range keys {
		row := byKey[key]
		sort.Slice(row.Days, func(i, j int) bool {
			return domain.WeekdayIndex[row.Days[i]] < domain.WeekdayIndex[row.Days[j]]
		})
		if len(row.Days) > 0 {
			row.Day = row.Days[0]
		}
		stats.Rows = append(stats.Rows, *row)
		stats.Total++
		if row.Done {
			stats.DoneCount++
		}
	}
	return stats
}

// NextTask is one upcoming item for the next-up feed.
type NextTask struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Day       string   `json:"day"`
	Date      string   `json:"date"`
	Assignees []string `json:"assignees"`
}

// NextTasks lists the next undone current-week tasks from today onward,
// optionally filtered by person, in (date, order) order.
func NextTasks(b domain.Board, personID string, limit int, today time.Time) []NextTask {
	if limit <= 0 {
		limit = 3
	}
	weekStart := domain.WeekStart(today)
	startISO := domain.FormatDate(weekStart)
	todayISO := domain.FormatDate(today)

	type candidate struct {
		task domain.Task
		date string
	}
	candidates := []candidate{}
	for _, t := range b.Tasks {
		if !domain.IsWeekdayColumn(t.Column) || t.WeekStart != startISO {
			continue
		}
		if personID != "" && !containsString(t.Assignees, personID) {
			continue
		}
		day, _ := domain.WeekdayDate(weekStart, t.Column)
		iso := domain.FormatDate(day)
		if iso < todayISO {
			continue
		}
		candidates = append(candidates, candidate{task: t, date: iso})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].date != candidates[j].date {
			return candidates[i].date < candidates[j].date
		}
		return candidates[i].task.Order < candidates[j].task.Order
	})

	out := []NextTask{}
	seenSpans := map[string]struct{}{}
	for _, c := range candidates {
		if c.task.SpanID != "" {
			spanKey := c.task.SpanID + ":" + c.task.WeekStart
			if _, dup := seenSpans[spanKey]; dup {
				continue
			}
			seenSpans[spanKey] = struct{}{}
		}
		out = append(out, NextTask{
			ID:        c.task.ID,
			Title:     strings.TrimSpace(c.task.Title),
			Day:       c.task.Column,
			Date:      c.date,
			Assignees: append([]string{}, c.task.Assignees...),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}
