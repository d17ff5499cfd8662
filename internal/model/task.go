package model

import "time"

// Task status constants, matching the Taskwarrior vocabulary.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is the locally stored representation of a synchronized issue.
type Task struct {
	// UUID is the internal unique identifier for this task.
	UUID string `json:"uuid"`

	// Target is the name of the configured target that produced the task.
	Target string `json:"target"`

	// UniqueKey identifies the remote ticket within its target and is the
	// sole key used to match incoming issues against stored tasks.
	UniqueKey string `json:"unique_key"`

	// Description is the human-readable summary line.
	Description string `json:"description"`

	// Project is the project the task is filed under.
	Project string `json:"project"`

	// Priority is one of the Priority* letters, or empty.
	Priority Priority `json:"priority"`

	// Status is StatusPending or StatusCompleted.
	Status string `json:"status"`

	Tags        []string `json:"tags,omitempty"`
	Annotations []string `json:"annotations,omitempty"`

	// UDAs holds the service-declared custom fields keyed by UDA name.
	UDAs map[string]string `json:"udas,omitempty"`

	// Entry is when the task was first stored.
	Entry time.Time `json:"entry"`

	// Modified is when the task was last changed by a sync pass.
	Modified time.Time `json:"modified"`

	// End is when the task was completed, zero while pending.
	End time.Time `json:"end,omitempty"`
}

// TaskFromIssue builds the pending task that represents issue for target.
func TaskFromIssue(target string, issue Issue) Task {
	udas := make(map[string]string, len(issue.UDAs))
	for k, v := range issue.UDAs {
		udas[k] = v
	}

	return Task{
		Target:      target,
		UniqueKey:   issue.UniqueKey,
		Description: issue.Description,
		Project:     issue.Project,
		Priority:    issue.Priority,
		Status:      StatusPending,
		Tags:        append([]string(nil), issue.Tags...),
		Annotations: append([]string(nil), issue.Annotations...),
		UDAs:        udas,
	}
}

// SameContent reports whether t and other carry the same synchronized
// fields. Identity and timestamps are ignored.
func (t Task) SameContent(other Task) bool {
	if t.Description != other.Description ||
		t.Project != other.Project ||
		t.Priority != other.Priority ||
		t.Status != other.Status {
		return false
	}
	if !equalStrings(t.Tags, other.Tags) ||
		!equalStrings(t.Annotations, other.Annotations) {
		return false
	}
	if len(t.UDAs) != len(other.UDAs) {
		return false
	}
	for k, v := range t.UDAs {
		if ov, ok := other.UDAs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
