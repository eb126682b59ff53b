package domain

import (
	"testing"

	"github.com/bytedance/sonic"
)

func TestSettingsUnmarshalEmptyObjectTakesDefaults(t *testing.T) {
	var s Settings
	if err := sonic.Unmarshal([]byte(`{}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := DefaultSettings()
	if s.Title != want.Title || s.Theme != want.Theme {
		t.Fatalf("defaults not applied: %+v", s)
	}
	if !s.ShowOnboarding || !s.ShowNextUp {
		t.Fatal("boolean defaults lost")
	}
	if s.WeeklyRefresh != want.WeeklyRefresh {
		t.Fatalf("refresh schedule = %+v", s.WeeklyRefresh)
	}
}

func TestSettingsUnmarshalMergesPartialPayload(t *testing.T) {
	payload := `{
		"theme": "dark",
		"weekly_refresh": {"hour": 6},
		"gestures": {"drag_tasks": false},
		"show_next_up": false
	}`
	var s Settings
	if err := sonic.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Theme != "dark" {
		t.Fatalf("theme = %q", s.Theme)
	}
	if s.Title != "Household Chores" {
		t.Fatalf("absent title should default, got %q", s.Title)
	}
	// only hour was sent, the rest of the schedule keeps defaults
	if s.WeeklyRefresh.Weekday != "sunday" || s.WeeklyRefresh.Hour != 6 || s.WeeklyRefresh.Minute != 30 {
		t.Fatalf("refresh schedule = %+v", s.WeeklyRefresh)
	}
	if !s.Gestures.DragPeople || s.Gestures.DragTasks {
		t.Fatalf("gestures = %+v", s.Gestures)
	}
	if !s.ShowOnboarding || s.ShowNextUp {
		t.Fatalf("toggles = %v %v", s.ShowOnboarding, s.ShowNextUp)
	}
}

func TestSettingsUnmarshalExplicitZeroValuesStick(t *testing.T) {
	payload := `{"title": "", "show_onboarding": false, "quick_add": []}`
	var s Settings
	if err := sonic.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Title != "" {
		t.Fatalf("explicit empty title overridden to %q", s.Title)
	}
	if s.ShowOnboarding {
		t.Fatal("explicit false overridden")
	}
	if s.QuickAdd == nil || len(s.QuickAdd) != 0 {
		t.Fatalf("quick add = %#v", s.QuickAdd)
	}
}
