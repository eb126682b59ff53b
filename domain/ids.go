package domain

import (
	"strings"

	"github.com/google/uuid"
)

func newID(prefix string, n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + hex[:n]
}

// NewPersonID returns a fresh person id.
func NewPersonID() string { return newID("person_", 10) }

// NewTaskID returns a fresh task id.
func NewTaskID() string { return newID("task_", 12) }

// NewTemplateID returns a fresh template id.
func NewTemplateID() string { return newID("tpl_", 10) }

// NewSpanID returns a fresh span group id.
func NewSpanID() string { return newID("span_", 10) }
