// ABOUTME: In-memory calendar event source with date-range and keyword queries.
// ABOUTME: Serves a fixed sample data set for the get_calendar_events tool.

package calendar

import (
	"strings"
	"time"
)

// Layout is the ISO-8601 local date-time profile used for all event times
// and query bounds.
const Layout = "2006-01-02T15:04:05"

// Event is a single calendar entry. Times are ISO-8601 local date-time
// strings in the Layout profile.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// Filter narrows a query. Nil bounds and an empty keyword match everything.
type Filter struct {
	Start   *time.Time
	End     *time.Time
	Keyword string
}

// Service answers calendar queries over a fixed event set.
type Service struct {
	events []Event
}

// NewService creates a service backed by the built-in sample events.
func NewService() *Service {
	return &Service{events: sampleEvents()}
}

// Query returns the events overlapping the filter's inclusive time range
// whose title, location, or description contains the keyword.
// An event overlaps when it ends at or after Start and begins at or before End.
func (s *Service) Query(f Filter) []Event {
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))

	matched := make([]Event, 0, len(s.events))
	for _, event := range s.events {
		start, err := time.Parse(Layout, event.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(Layout, event.EndTime)
		if err != nil {
			continue
		}

		if f.Start != nil && end.Before(*f.Start) {
			continue
		}
		if f.End != nil && start.After(*f.End) {
			continue
		}
		if keyword != "" && !containsKeyword(event, keyword) {
			continue
		}
		matched = append(matched, event)
	}
	return matched
}

func containsKeyword(event Event, keyword string) bool {
	return strings.Contains(strings.ToLower(event.Title), keyword) ||
		strings.Contains(strings.ToLower(event.Description), keyword) ||
		strings.Contains(strings.ToLower(event.Location), keyword)
}

func sampleEvents() []Event {
	return []Event{
		{
			ID:          "evt-001",
			Title:       "Daily Standup",
			StartTime:   "2026-02-11T09:30:00",
			EndTime:     "2026-02-11T09:45:00",
			Location:    "Meeting Room A",
			Description: "Daily sync for engineering team",
		},
		{
			ID:          "evt-002",
			Title:       "Product Review",
			StartTime:   "2026-02-11T14:00:00",
			EndTime:     "2026-02-11T15:00:00",
			Location:    "Conference Room 3",
			Description: "Review sprint deliverables",
		},
		{
			ID:          "evt-003",
			Title:       "Architecture Workshop",
			StartTime:   "2026-02-12T10:00:00",
			EndTime:     "2026-02-12T11:30:00",
			Location:    "Online",
			Description: "Discuss MCP server extensibility",
		},
	}
}
