package domain

import "github.com/bytedance/sonic"

// MaxQuickAdd bounds the quick-add template name list.
const MaxQuickAdd = 24

// WeeklyRefreshSchedule is the local time at which the weekly board reset
// runs.
type WeeklyRefreshSchedule struct {
	Weekday string `json:"weekday"`
	Hour    int    `json:"hour"`
	Minute  int    `json:"minute"`
}

// Gestures toggles drag interactions in the visual client.
type Gestures struct {
	DragPeople bool `json:"drag_people"`
	DragTasks  bool `json:"drag_tasks"`
}

// Settings is per-board configuration.
type Settings struct {
	Title          string                `json:"title"`
	Theme          string                `json:"theme"`
	Labels         map[string]string     `json:"labels"`
	WeeklyRefresh  WeeklyRefreshSchedule `json:"weekly_refresh"`
	QuickAdd       []string              `json:"quick_add"`
	Gestures       Gestures              `json:"gestures"`
	ShowOnboarding bool                  `json:"show_onboarding"`
	ShowNextUp     bool                  `json:"show_next_up"`
}

// DefaultSettings returns the documented settings defaults. The weekly
// refresh default mirrors the original Sunday 00:30 reset.
func DefaultSettings() Settings {
	return Settings{
		Title:  "Household Chores",
		Theme:  "light",
		Labels: map[string]string{},
		WeeklyRefresh: WeeklyRefreshSchedule{
			Weekday: "sunday",
			Hour:    0,
			Minute:  30,
		},
		QuickAdd:       []string{},
		Gestures:       Gestures{DragPeople: true, DragTasks: true},
		ShowOnboarding: true,
		ShowNextUp:     true,
	}
}

// UnmarshalJSON deep-merges the payload over DefaultSettings so missing
// nested keys take defaults instead of zero values.
func (s *Settings) UnmarshalJSON(data []byte) error {
	defaults := DefaultSettings()
	raw := struct {
		Title         *string           `json:"title"`
		Theme         *string           `json:"theme"`
		Labels        map[string]string `json:"labels"`
		WeeklyRefresh *struct {
			Weekday *string `json:"weekday"`
			Hour    *int    `json:"hour"`
			Minute  *int    `json:"minute"`
		} `json:"weekly_refresh"`
		QuickAdd *[]string `json:"quick_add"`
		Gestures *struct {
			DragPeople *bool `json:"drag_people"`
			DragTasks  *bool `json:"drag_tasks"`
		} `json:"gestures"`
		ShowOnboarding *bool `json:"show_onboarding"`
		ShowNextUp     *bool `json:"show_next_up"`
	}{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = defaults
	if raw.Title != nil {
		s.Title = *raw.Title
	}
	if raw.Theme != nil {
		s.Theme = *raw.Theme
	}
	if raw.Labels != nil {
		s.Labels = raw.Labels
	}
	if raw.WeeklyRefresh != nil {
		if raw.WeeklyRefresh.Weekday != nil {
			s.WeeklyRefresh.Weekday = *raw.WeeklyRefresh.Weekday
		}
		if raw.WeeklyRefresh.Hour != nil {
			s.WeeklyRefresh.Hour = *raw.WeeklyRefresh.Hour
		}
		if raw.WeeklyRefresh.Minute != nil {
			s.WeeklyRefresh.Minute = *raw.WeeklyRefresh.Minute
		}
	}
	if raw.QuickAdd != nil {
		s.QuickAdd = *raw.QuickAdd
	}
	if raw.Gestures != nil {
		if raw.Gestures.DragPeople != nil {
			s.Gestures.DragPeople = *raw.Gestures.DragPeople
		}
		if raw.Gestures.DragTasks != nil {
			s.Gestures.DragTasks = *raw.Gestures.DragTasks
		}
	}
	if raw.ShowOnboarding != nil {
		s.ShowOnboarding = *raw.ShowOnboarding
	}
	if raw.ShowNextUp != nil {
		s.ShowNextUp = *raw.ShowNextUp
	}
	return nil
}
