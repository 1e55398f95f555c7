package model

import (
	"fmt"
	"time"
)

// DailyBrief is the one-line summary shown at the top of the dashboard.
type DailyBrief struct {
	Summary string `json:"summary"`
	Date    string `json:"date"`
}

// Suggestion is a generated prompt nudging the user toward an action.
type Suggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// DashboardView is the per-user aggregate served by the read path and cached
// as a snapshot. It is computed entirely from locally mirrored data, never
// from a live upstream call.
type DashboardView struct {
	DailyBrief    DailyBrief      `json:"daily_brief"`
	Messages      []Message       `json:"messages"`
	Events        []CalendarEvent `json:"events"`
	Tasks         []Task          `json:"tasks"`
	Notifications []Notification  `json:"notifications"`
	Suggestions   []Suggestion    `json:"suggestions"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// BuildDailyBrief composes the greeting line from the view's counts.
func BuildDailyBrief(meetings, unreadHighPriority, openTasks int, now time.Time) DailyBrief {
	return DailyBrief{
		Summary: fmt.Sprintf("Good %s! You have %s today, %s, and %s requiring attention.",
			timeOfDay(now),
			plural(meetings, "meeting"),
			plural(unreadHighPriority, "unread priority email"),
			plural(openTasks, "action item"),
		),
		Date: now.Format("Monday, January 2, 2006"),
	}
}

func timeOfDay(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "morning"
	case h < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
