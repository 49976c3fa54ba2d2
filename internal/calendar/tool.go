// ABOUTME: The get_calendar_events tool exposing calendar queries over tools/call.
// ABOUTME: Validates argument shapes and returns structured plus text views of results.

package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/relay-mcp/internal/jsonrpc"
)

// QueryTool implements the get_calendar_events tool.
type QueryTool struct {
	svc *Service
}

// NewQueryTool creates the calendar query tool backed by the given service.
func NewQueryTool(svc *Service) *QueryTool {
	return &QueryTool{svc: svc}
}

func (t *QueryTool) Name() string {
	return "get_calendar_events"
}

func (t *QueryTool) Description() string {
	return "Query calendar events by date range and keyword"
}

func (t *QueryTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"start_time": {Type: "string", Format: "date-time", Description: "Inclusive start time"},
			"end_time":   {Type: "string", Format: "date-time", Description: "Inclusive end time"},
			"keyword":    {Type: "string", Description: "Keyword in title, location or description"},
		},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// Invoke validates the arguments, queries the calendar, and returns both a
// structured event list and a human-readable summary of the same result.
func (t *QueryTool) Invoke(_ context.Context, args map[string]any) (any, error) {
	filter, err := parseFilter(args)
	if err != nil {
		return nil, err
	}

	events := t.svc.Query(filter)
	summary := buildSummary(events)

	return map[string]any{
		"event_count": len(events),
		"has_events":  len(events) > 0,
		"structuredContent": map[string]any{
			"events":      events,
			"event_count": len(events),
			"has_events":  len(events) > 0,
		},
		"content": []map[string]any{
			{"type": "text", "text": summary},
		},
	}, nil
}

func parseFilter(args map[string]any) (Filter, error) {
	for _, field := range []string{"start_time", "end_time", "keyword"} {
		if value, present := args[field]; present && value != nil {
			if _, ok := value.(string); !ok {
				return Filter{}, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "%s must be string", field)
			}
		}
	}

	start, err := parseBound(args, "start_time")
	if err != nil {
		return Filter{}, err
	}
	end, err := parseBound(args, "end_time")
	if err != nil {
		return Filter{}, err
	}
	if start != nil && end != nil && start.After(*end) {
		return Filter{}, jsonrpc.NewError(jsonrpc.CodeInvalidParams,
			"start_time must be earlier than or equal to end_time")
	}

	keyword, _ := args["keyword"].(string)
	return Filter{Start: start, End: end, Keyword: keyword}, nil
}

func parseBound(args map[string]any, field string) (*time.Time, error) {
	text, _ := args[field].(string)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(Layout, text)
	if err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams,
			"%s must be ISO-8601 date-time, e.g. 2026-02-11T09:00:00", field)
	}
	return &parsed, nil
}

func buildSummary(events []Event) string {
	if len(events) == 0 {
		return "No calendar events found in the specified time range."
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Found %d calendar events:", len(events))
	for _, event := range events {
		fmt.Fprintf(&summary, "\n- %s ~ %s | %s @ %s",
			event.StartTime, event.EndTime, event.Title, event.Location)
	}
	return summary.String()
}
