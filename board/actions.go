package board

import (
	"strings"
	"time"

	"choreboard/domain"
)

// TaskForm is the submitted add/edit form. Fixed plus weekdays describes a
// recurring template; Span plus weekdays describes a contiguous multi-day
// group; otherwise the form is a standalone task for one column.
type TaskForm struct {
	Title     string   `json:"title"`
	Fixed     bool     `json:"fixed"`
	Span      bool     `json:"span"`
	EndDate   string   `json:"end_date"`
	Column    string   `json:"column"`
	Weekdays  []string `json:"weekdays"`
	Assignees []string `json:"assignees"`
}

// Delete scopes for template occurrences.
const (
	ScopeOccurrence = "occurrence"
	ScopeSeries     = "series"
)

// CreateTask applies an add-task form. Fixed forms create a template and
// materialize the current week; span forms create a contiguous group; plain
// forms append a standalone task.
func CreateTask(b domain.Board, form TaskForm, today time.Time) (domain.Board, error) {
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return b, errValidation("task title is required")
	}

	switch {
	case form.Span:
		tasks, err := buildSpanTasks(title, form.Assignees, validDateOrEmpty(form.EndDate), form.Weekdays, today)
		if err != nil {
			return b, err
		}
		b.Tasks = append(b.Tasks, tasks...)

	case form.Fixed || len(form.Weekdays) > 0:
		tpl, err := templateFromForm(title, form)
		if err != nil {
			return b, err
		}
		b.Templates = append(b.Templates, tpl)
		b.Tasks = append(b.Tasks, MaterializeCurrentWeek(tpl, today)...)

	default:
		b.Tasks = append(b.Tasks, standaloneFromForm(title, form, today))
	}
	return b, nil
}

// UpdateTask applies an edit form to an existing task. The prior
// representation, whether template plus instances, span group or single task, is
// fully torn down and the new representation built from the form. Template
// exclusions are carried forward when the template id is reused.
func UpdateTask(b domain.Board, taskID string, form TaskForm, today time.Time) (domain.Board, error) {
	original, ok := findTask(b.Tasks, taskID)
	if !ok {
		return b, errValidation("task %s not found", taskID)
	}
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return b, errValidation("task title is required")
	}

	switch {
	case form.Span:
		tasks, err := buildSpanTasks(title, form.Assignees, validDateOrEmpty(form.EndDate), form.Weekdays, today)
		if err != nil {
			return b, err
		}
		b = removeRepresentation(b, original)
		b.Tasks = append(b.Tasks, tasks...)

	case form.Fixed || len(form.Weekdays) > 0:
		tpl, err := templateFromForm(title, form)
		if err != nil {
			return b, err
		}
		if original.TemplateID != "" {
			tpl.ID = original.TemplateID
			if old, ok := findTemplate(b.Templates, original.TemplateID); ok {
				tpl.ExcludedDates = append([]string{}, old.ExcludedDates...)
			}
		}
		b = removeRepresentation(b, original)
		b.Templates = append(b.Templates, tpl)
		b.Tasks = append(b.Tasks, MaterializeCurrentWeek(tpl, today)...)

	default:
		b = removeRepresentation(b, original)
		task := standaloneFromForm(title, form, today)
		if original.TemplateID == "" && original.SpanID == "" {
			// A plain edit keeps the task's identity and history.
			task.ID = original.ID
			task.CreatedAt = original.CreatedAt
		}
		b.Tasks = append(b.Tasks, task)
	}
	return b, nil
}

// DeleteTask removes a task. Span members always go as a whole group.
// Template occurrences honor the scope: ScopeOccurrence excludes this date
// only, everything else tears down the entire series.
func DeleteTask(b domain.Board, taskID, scope string) (domain.Board, error) {
	task, ok := findTask(b.Tasks, taskID)
	if !ok {
		return b, errValidation("task %s not found", taskID)
	}

	if task.SpanID != "" {
		return deleteSpanGroup(b, task), nil
	}
	if task.TemplateID != "" {
		if scope == ScopeOccurrence {
			return DeleteOccurrence(b, taskID)
		}
		return DeleteSeries(b, task.TemplateID)
	}

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

// MoveTask moves a task (or its whole span group) to another column. Span
// groups only move between their weekdays and done; standalone tasks and
// occurrences move anywhere.
func MoveTask(b domain.Board, taskID, column string, today time.Time) (domain.Board, error) {
	if !domain.IsWeekdayColumn(column) && column != domain.ColumnDone {
		return b, errValidation("unknown column %q", column)
	}
	task, ok := findTask(b.Tasks, taskID)
	if !ok {
		return b, errValidation("task %s not found", taskID)
	}

	if task.SpanID != "" && column != domain.ColumnDone {
		return b, errValidation("span tasks move to done as a group only")
	}

	move := map[string]struct{}{task.ID: {}}
	if task.SpanID != "" {
		for _, member := range SpanGroup(b, task) {
			move[member.ID] = struct{}{}
		}
	}

	weekStart := domain.FormatDate(domain.WeekStart(today))
	for i := range b.Tasks {
		if _, ok := move[b.Tasks[i].ID]; !ok {
			continue
		}
		b.Tasks[i].Column = column
		if column == domain.ColumnDone {
			b.Tasks[i].WeekStart = ""
		} else if b.Tasks[i].WeekStart == "" {
			b.Tasks[i].WeekStart = weekStart
		}
	}
	return b, nil
}

// AssignPerson adds or removes a person on a task. Template occurrences fan
// out to the template and every sibling instance; span members fan out to
// the whole group.
func AssignPerson(b domain.Board, taskID, personID string, assign bool) (domain.Board, error) {
	task, ok := findTask(b.Tasks, taskID)
	if !ok {
		return b, errValidation("task %s not found", taskID)
	}
	if assign && !personExists(b.People, personID) {
		return b, errValidation("person %s not found", personID)
	}

	affects := func(t domain.Task) bool {
		if t.ID == task.ID {
			return true
		}
		if task.TemplateID != "" && t.TemplateID == task.TemplateID {
			return true
		}
		if task.SpanID != "" && t.SpanID == task.SpanID && t.WeekStart == task.WeekStart {
			return true
		}
		return false
	}

	for i := range b.Tasks {
		if !affects(b.Tasks[i]) {
			continue
		}
		b.Tasks[i].Assignees = toggleAssignee(b.Tasks[i].Assignees, personID, assign)
	}
	if task.TemplateID != "" {
		for i := range b.Templates {
			if b.Templates[i].ID == task.TemplateID {
				b.Templates[i].Assignees = toggleAssignee(b.Templates[i].Assignees, personID, assign)
			}
		}
	}
	return b, nil
}

// AddPerson appends a household member with the first free palette color.
func AddPerson(b domain.Board, name, role string) (domain.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return b, errValidation("person name is required")
	}
	for _, p := range b.People {
		if strings.EqualFold(p.Name, name) {
			return b, errValidation("person %q already exists", name)
		}
	}
	if role != domain.RoleChild {
		role = domain.RoleAdult
	}

	taken := make(map[string]struct{}, len(b.People))
	for _, p := range b.People {
		taken[p.Color] = struct{}{}
	}
	color := domain.DefaultColors[len(b.People)%len(domain.DefaultColors)]
	for i := 0; i < len(domain.DefaultColors); i++ {
		candidate := domain.DefaultColors[(len(b.People)+i)%len(domain.DefaultColors)]
		if _, used := taken[candidate]; !used {
			color = candidate
			break
		}
	}

	b.People = append(b.People, domain.Person{
		ID:    domain.NewPersonID(),
		Name:  name,
		Color: color,
		Role:  role,
	})
	return b, nil
}

// RemovePerson deletes a member and strips their id from every task and
// template assignee list.
func RemovePerson(b domain.Board, personID string) (domain.Board, error) {
	if !personExists(b.People, personID) {
		return b, errValidation("person %s not found", personID)
	}

	people := make([]domain.Person, 0, len(b.People))
	for _, p := range b.People {
		if p.ID == personID {
			continue
		}
		people = append(people, p)
	}
	b.People = people

	for i := range b.Tasks {
		b.Tasks[i].Assignees = toggleAssignee(b.Tasks[i].Assignees, personID, false)
	}
	for i := range b.Templates {
		b.Templates[i].Assignees = toggleAssignee(b.Templates[i].Assignees, personID, false)
	}
	return b, nil
}

// removeRepresentation tears down whatever the task currently is: all
// instances plus the template for an occurrence, the whole group for a span
// member, or just the task itself.
func removeRepresentation(b domain.Board, task domain.Task) domain.Board {
	if task.SpanID != "" {
		return deleteSpanGroup(b, task)
	}

	tasks := make([]domain.Task, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		if task.TemplateID != "" && t.TemplateID == task.TemplateID {
			continue
		}
		if t.ID == task.ID {
			continue
		}
		tasks = append(tasks, t)
	}
	b.Tasks = tasks

	if task.TemplateID != "" {
		templates := make([]domain.Template, 0, len(b.Templates))
		for _, tpl := range b.Templates {
			if tpl.ID == task.TemplateID {
				continue
			}
			templates = append(templates, tpl)
		}
		b.Templates = templates
	}
	return b
}

func templateFromForm(title string, form TaskForm) (domain.Template, error) {
	if _, ok := domain.ParseDate(form.EndDate); !ok {
		return domain.Template{}, errValidation("fixed tasks require an end date")
	}
	weekdays := normalizeWeekdays(form.Weekdays)
	if len(weekdays) == 0 {
		return domain.Template{}, errValidation("select at least one weekday for fixed tasks")
	}
	return domain.Template{
		ID:        domain.NewTemplateID(),
		Title:     title,
		Assignees: append([]string{}, form.Assignees...),
		EndDate:   form.EndDate,
		Weekdays:  weekdays,
		CreatedAt: domain.NowStamp(),
	}, nil
}

func standaloneFromForm(title string, form TaskForm, today time.Time) domain.Task {
	column := form.Column
	if !domain.IsWeekdayColumn(column) && column != domain.ColumnDone {
		column = domain.WeekdayColumns[0]
	}
	weekStart := ""
	if domain.IsWeekdayColumn(column) {
		weekStart = domain.FormatDate(domain.WeekStart(today))
	}
	return domain.Task{
		ID:        domain.NewTaskID(),
		Title:     title,
		Assignees: append([]string{}, form.Assignees...),
		Column:    column,
		CreatedAt: domain.NowStamp(),
		EndDate:   validDateOrEmpty(form.EndDate),
		WeekStart: weekStart,
	}
}

func validDateOrEmpty(v string) string {
	if d, ok := domain.ParseDate(v); ok {
		return domain.FormatDate(d)
	}
	return ""
}

func personExists(people []domain.Person, id string) bool {
	for _, p := range people {
		if p.ID == id {
			return true
		}
	}
	return false
}

func toggleAssignee(assignees []string, personID string, add bool) []string {
	out := make([]string, 0, len(assignees)+1)
	present := false
	for _, id := range assignees {
		if id == personID {
			present = true
			if !add {
				continue
			}
		}
		out = append(out, id)
	}
	if add && !present {
		out = append(out, personID)
	}
	return out
}
