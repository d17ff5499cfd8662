package model

import "fmt"

// Priority is a Taskwarrior priority letter.
type Priority string

// Normalized priority values.
const (
	PriorityLow    Priority = "L"
	PriorityMedium Priority = "M"
	PriorityHigh   Priority = "H"
)

// ParsePriority validates a configured priority letter.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority %q: want one of L, M, H", s)
	}
}

// UDA declares a custom field a service adds to the task schema.
type UDA struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Issue is the normalized record a service hands to the sync engine.
// Two issues with the same UniqueKey refer to the same remote ticket.
type Issue struct {
	Project     string            `json:"project"`
	Priority    Priority          `json:"priority"`
	Tags        []string          `json:"tags"`
	Annotations []string          `json:"annotations"`
	Description string            `json:"description"`
	UDAs        map[string]string `json:"udas"`
	UniqueKey   string            `json:"unique_key"`
}
