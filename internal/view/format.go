// Package view renders dashboard view-models for the terminal. It rounds and
// colours values; it never derives them.
package view

import (
	"fmt"
	"math"
	"strings"
	"time"

	fcolor "github.com/fatih/color"

	"mentorhub/pkg/types"
)

// FormatRating renders an average rating with one decimal.
func FormatRating(rating float64) string {
	return fmt.Sprintf("%.1f", rating)
}

// FormatPercent renders a 0..1 rate as an integer percentage.
func FormatPercent(rate float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(rate*100)))
}

// FormatWindow renders a session's time window in loc.
func FormatWindow(start, end time.Time, loc *time.Location) string {
	start, end = start.In(loc), end.In(loc)
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return fmt.Sprintf("%s %s-%s", start.Format("Mon Jan 2 2006"), start.Format("15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Mon Jan 2 2006 15:04"), end.Format("Mon Jan 2 2006 15:04"))
}

// status chip colours follow the dashboard pages: pending amber, approved green,
// declined red, completed blue
var statusColors = map[types.Status]*fcolor.Color{
	types.StatusPending:   fcolor.New(fcolor.FgYellow),
	types.StatusApproved:  fcolor.New(fcolor.FgGreen),
	types.StatusDeclined:  fcolor.New(fcolor.FgRed),
	types.StatusCompleted: fcolor.New(fcolor.FgBlue),
}

var (
	headingColor = fcolor.New(fcolor.Bold)
	warningColor = fcolor.New(fcolor.FgYellow)
	mutedColor   = fcolor.New(fcolor.Faint)
)

// statusChip is the upper-case status label in its dashboard colour.
func statusChip(status types.Status) cell {
	return cell{text: strings.ToUpper(string(status)), color: statusColors[status]}
}

func actionList(actions types.ActionSet) cell {
	if actions.Len() == 0 {
		return colored(mutedColor, "-")
	}
	names := make([]string, 0, actions.Len())
	for _, a := range actions.List() {
		names = append(names, strings.ReplaceAll(string(a), "_", "-"))
	}
	return plain(strings.Join(names, ","))
}

func roleList(roles []types.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
