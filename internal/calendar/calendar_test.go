// ABOUTME: Tests for calendar event queries over the fixed sample set.
// ABOUTME: Covers range overlap semantics and keyword filtering.

package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(Layout, value)
	require.NoError(t, err)
	return &parsed
}

func eventIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func TestQueryEmptyFilterReturnsAll(t *testing.T) {
	svc := NewService()

	events := svc.Query(Filter{})
	assert.Len(t, events, 3)
}

func TestQueryFullWindow(t *testing.T) {
	svc := NewService()

	events := svc.Query(Filter{
		Start: mustParse(t, "2026-02-11T00:00:00"),
		End:   mustParse(t, "2026-02-12T23:59:59"),
	})
	assert.Equal(t, []string{"evt-001", "evt-002", "evt-003"}, eventIDs(events))
}

func TestQueryNarrowWindow(t *testing.T) {
	svc := NewService()

	// Only the product review overlaps the afternoon of the 11th.
	events := svc.Query(Filter{
		Start: mustParse(t, "2026-02-11T13:00:00"),
		End:   mustParse(t, "2026-02-11T23:00:00"),
	})
	assert.Equal(t, []string{"evt-002"}, eventIDs(events))
}

func TestQueryOverlapIsInclusive(t *testing.T) {
	svc := NewService()

	// Window ending exactly at an event's start still matches it.
	events := svc.Query(Filter{
		Start: mustParse(t, "2026-02-11T09:45:00"),
		End:   mustParse(t, "2026-02-11T14:00:00"),
	})
	assert.Equal(t, []string{"evt-001", "evt-002"}, eventIDs(events))
}

func TestQueryStartBoundOnly(t *testing.T) {
	svc := NewService()

	events := svc.Query(Filter{Start: mustParse(t, "2026-02-12T00:00:00")})
	assert.Equal(t, []string{"evt-003"}, eventIDs(events))
}

func TestQueryEndBoundOnly(t *testing.T) {
	svc := NewService()

	events := svc.Query(Filter{End: mustParse(t, "2026-02-11T12:00:00")})
	assert.Equal(t, []string{"evt-001"}, eventIDs(events))
}

func TestQueryKeyword(t *testing.T) {
	svc := NewService()

	t.Run("matches title", func(t *testing.T) {
		events := svc.Query(Filter{Keyword: "workshop"})
		assert.Equal(t, []string{"evt-003"}, eventIDs(events))
	})

	t.Run("matches location", func(t *testing.T) {
		events := svc.Query(Filter{Keyword: "online"})
		assert.Equal(t, []string{"evt-003"}, eventIDs(events))
	})

	t.Run("matches description case-insensitively", func(t *testing.T) {
		events := svc.Query(Filter{Keyword: "SPRINT"})
		assert.Equal(t, []string{"evt-002"}, eventIDs(events))
	})

	t.Run("whitespace is trimmed", func(t *testing.T) {
		events := svc.Query(Filter{Keyword: "  standup  "})
		assert.Equal(t, []string{"evt-001"}, eventIDs(events))
	})

	t.Run("no match", func(t *testing.T) {
		events := svc.Query(Filter{Keyword: "offsite"})
		assert.Empty(t, events)
	})
}

func TestQueryOutsideRange(t *testing.T) {
	svc := NewService()

	events := svc.Query(Filter{
		Start: mustParse(t, "2025-01-01T00:00:00"),
		End:   mustParse(t, "2025-01-02T00:00:00"),
	})
	assert.Empty(t, events)
}
