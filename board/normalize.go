// Package board implements the board engine: normalization, recurrence
// projection, template materialization, span grouping, three-way merge and
// the derived stats feeds. Everything here is pure: callers own the Board
// value and all I/O lives in the syncer and storage packages.
package board

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"choreboard/domain"
)

// Normalize converts arbitrary, possibly partial board input into canonical
// form. It never fails: missing collections become empty, unknown references
// are dropped and scalar fields take documented defaults. Normalize is
// idempotent.
func Normalize(raw domain.Board, today time.Time) domain.Board {
	out := domain.Board{
		People:    make([]domain.Person, 0, len(raw.People)),
		Tasks:     make([]domain.Task, 0, len(raw.Tasks)),
		Templates: make([]domain.Template, 0, len(raw.Templates)),
		UpdatedAt: raw.UpdatedAt,
	}

	knownIDs := make(map[string]struct{}, len(raw.People))
	byName := make(map[string]string, len(raw.People))
	for i, p := range raw.People {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = fmt.Sprintf("person_%d", i)
		}
		if _, dup := knownIDs[id]; dup {
			continue
		}
		knownIDs[id] = struct{}{}

		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = "Person"
		}
		lower := strings.ToLower(name)
		if _, taken := byName[lower]; !taken {
			byName[lower] = id
		}

		color := p.Color
		if !isHexColor(color) {
			color = domain.DefaultColors[len(out.People)%len(domain.DefaultColors)]
		}
		role := p.Role
		if role != domain.RoleChild {
			role = domain.RoleAdult
		}
		out.People = append(out.People, domain.Person{ID: id, Name: name, Color: color, Role: role})
	}

	knownTemplates := make(map[string]struct{}, len(raw.Templates))
	for i, tpl := range raw.Templates {
		title := strings.TrimSpace(tpl.Title)
		if title == "" {
			continue
		}
		end, ok := domain.ParseDate(tpl.EndDate)
		if !ok {
			continue
		}
		weekdays := normalizeWeekdays(tpl.Weekdays)
		if len(weekdays) == 0 {
			continue
		}

		id := strings.TrimSpace(tpl.ID)
		if id == "" {
			id = fmt.Sprintf("tpl_%d", i)
		}
		if _, dup := knownTemplates[id]; dup {
			continue
		}
		knownTemplates[id] = struct{}{}

		created := tpl.CreatedAt
		if created == "" {
			created = domain.NowStamp()
		}
		out.Templates = append(out.Templates, domain.Template{
			ID:            id,
			Title:         title,
			Assignees:     resolveAssignees(tpl.Assignees, knownIDs, byName),
			EndDate:       domain.FormatDate(end),
			Weekdays:      weekdays,
			ExcludedDates: normalizeDates(tpl.ExcludedDates),
			CreatedAt:     created,
		})
	}

	currentMonday := domain.WeekStart(today)
	knownTasks := make(map[string]struct{}, len(raw.Tasks))
	for i, t := range raw.Tasks {
		if t.Virtual {
			continue
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}

		id := strings.TrimSpace(t.ID)
		if id == "" {
			id = fmt.Sprintf("task_%d", i)
		}
		if _, dup := knownTasks[id]; dup {
			continue
		}
		knownTasks[id] = struct{}{}

		column := strings.ToLower(strings.TrimSpace(t.Column))
		if !domain.IsWeekdayColumn(column) && column != domain.ColumnDone {
			column = domain.WeekdayColumns[0]
		}

		created := t.CreatedAt
		if created == "" {
			created = domain.NowStamp()
		}

		endDate := ""
		if end, ok := domain.ParseDate(t.EndDate); ok {
			endDate = domain.FormatDate(end)
		}

		templateID := strings.TrimSpace(t.TemplateID)
		if _, ok := knownTemplates[templateID]; !ok {
			templateID = ""
		}

		weekStart := ""
		if domain.IsWeekdayColumn(column) {
			if ws, ok := domain.ParseDate(t.WeekStart); ok {
				weekStart = domain.FormatDate(domain.WeekStart(ws))
			} else {
				weekStart = domain.FormatDate(currentMonday)
			}
		}

		task := domain.Task{
			ID:         id,
			Title:      title,
			Assignees:  resolveAssignees(t.Assignees, knownIDs, byName),
			Column:     column,
			Order:      t.Order,
			CreatedAt:  created,
			EndDate:    endDate,
			TemplateID: templateID,
			Fixed:      templateID != "",
			SpanID:     strings.TrimSpace(t.SpanID),
			WeekStart:  weekStart,
		}
		if task.SpanID != "" {
			task.SpanIndex = t.SpanIndex
			task.SpanTotal = t.SpanTotal
		}
		out.Tasks = append(out.Tasks, task)
	}

	reindexSpans(out.Tasks)
	sortTasks(out.Tasks)
	reindexColumns(out.Tasks)
	out.Settings = normalizeSettings(raw.Settings)
	return out
}

// resolveAssignees keeps values that are known person ids, resolves the rest
// by case-insensitive exact name match and drops what is left. The result is
// de-duplicated and sorted.
func resolveAssignees(values []string, knownIDs map[string]struct{}, byName map[string]string) []string {
	seen := make(map[string]struct{}, len(values))
	resolved := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		id := ""
		if _, ok := knownIDs[v]; ok {
			id = v
		} else if match, ok := byName[strings.ToLower(v)]; ok {
			id = match
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		resolved = append(resolved, id)
	}
	sort.Strings(resolved)
	return resolved
}

func normalizeWeekdays(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if domain.IsWeekdayColumn(v) {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for _, day := range domain.WeekdayColumns {
		if _, ok := seen[day]; ok {
			out = append(out, day)
		}
	}
	return out
}

func normalizeDates(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		d, ok := domain.ParseDate(v)
		if !ok {
			continue
		}
		iso := domain.FormatDate(d)
		if _, dup := seen[iso]; dup {
			continue
		}
		seen[iso] = struct{}{}
		out = append(out, iso)
	}
	sort.Strings(out)
	return out
}

// reindexSpans reassigns dense zero-based span indices per span group, sorted
// by weekday position.
func reindexSpans(tasks []domain.Task) {
	groups := make(map[string][]int)
	for i, t := range tasks {
		if t.SpanID == "" {
			continue
		}
		key := t.SpanID + ":" + t.WeekStart
		groups[key] = append(groups[key], i)
	}
	for _, members := range groups {
		sort.Slice(members, func(a, b int) bool {
			ta, tb := tasks[members[a]], tasks[members[b]]
			ra, rb := domain.ColumnRank(ta.Column), domain.ColumnRank(tb.Column)
			if ra != rb {
				return ra < rb
			}
			return ta.Order < tb.Order
		})
		for idx, mi := range members {
			tasks[mi].SpanIndex = idx
			tasks[mi].SpanTotal = len(members)
		}
	}
}

func sortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := domain.ColumnRank(tasks[i].Column), domain.ColumnRank(tasks[j].Column)
		if ri != rj {
			return ri < rj
		}
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].CreatedAt < tasks[j].CreatedAt
	})
}

// reindexColumns reassigns stable order values per column after drag-and-drop
// writes.
func reindexColumns(tasks []domain.Task) {
	counters := make(map[string]int, len(domain.AllColumns))
	for i := range tasks {
		col := tasks[i].Column
		tasks[i].Order = counters[col]
		counters[col]++
	}
}

func normalizeSettings(s domain.Settings) domain.Settings {
	defaults := domain.DefaultSettings()
	if isZeroSettings(s) {
		return defaults
	}

	if strings.TrimSpace(s.Title) == "" {
		s.Title = defaults.Title
	}
	if s.Theme != "light" && s.Theme != "dark" {
		s.Theme = defaults.Theme
	}

	labels := make(map[string]string, len(s.Labels))
	for col, label := range s.Labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if domain.IsWeekdayColumn(col) || col == domain.ColumnDone {
			labels[col] = label
		}
	}
	s.Labels = labels

	if !domain.IsWeekdayColumn(s.WeeklyRefresh.Weekday) {
		s.WeeklyRefresh.Weekday = defaults.WeeklyRefresh.Weekday
	}
	if s.WeeklyRefresh.Hour < 0 || s.WeeklyRefresh.Hour > 23 {
		s.WeeklyRefresh.Hour = defaults.WeeklyRefresh.Hour
	}
	if s.WeeklyRefresh.Minute < 0 || s.WeeklyRefresh.Minute > 59 {
		s.WeeklyRefresh.Minute = defaults.WeeklyRefresh.Minute
	}

	seen := make(map[string]struct{}, len(s.QuickAdd))
	quick := make([]string, 0, len(s.QuickAdd))
	for _, name := range s.QuickAdd {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		quick = append(quick, name)
		if len(quick) == domain.MaxQuickAdd {
			break
		}
	}
	s.QuickAdd = quick
	return s
}

func isZeroSettings(s domain.Settings) bool {
	return s.Title == "" && s.Theme == "" && len(s.Labels) == 0 &&
		s.WeeklyRefresh == (domain.WeeklyRefreshSchedule{}) &&
		len(s.QuickAdd) == 0 && s.Gestures == (domain.Gestures{}) &&
		!s.ShowOnboarding && !s.ShowNextUp
}

func isHexColor(v string) bool {
	if len(v) != 7 || v[0] != '#' {
		return false
	}
	for _, c := range v[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
