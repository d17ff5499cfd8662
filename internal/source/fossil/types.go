package fossil

import (
	"strings"
	"unicode"
)

// Report column names the normalizer understands. Any other column of the
// report is kept in Ticket.Columns for label templates.
const (
	ColumnNumber      = "#"
	ColumnStatus      = "status"
	ColumnTitle       = "title"
	ColumnType        = "type"
	ColumnPriority    = "priority"
	ColumnSeverity    = "severity"
	ColumnSubsystem   = "subsystem"
	ColumnLabels      = "labels"
	ColumnDescription = "description"

	// ColumnURL is not part of the report; it is derived for every row.
	ColumnURL = "url"
)

// StatusOpen is the only ticket status that is synchronized.
const StatusOpen = "Open"

// Ticket is one row of a Fossil ticket report.
type Ticket struct {
	// Number is the ticket identifier from the "#" column.
	Number string `json:"#"`

	Status      string   `json:"status"`
	Title       string   `json:"title"`
	Type        string   `json:"type,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	Subsystem   string   `json:"subsystem,omitempty"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"labels,omitempty"`

	// URL is the ticket's tktview page; it is the ticket's identity.
	URL string `json:"url"`

	// Columns holds every column of the row, plus "url", exactly as
	// reported. It is read-only context for label templates.
	Columns map[string]string `json:"-"`
}

// newTicket builds a Ticket from a header-keyed row.
func newTicket(columns map[string]string, baseURL string) Ticket {
	t := Ticket{
		Number:      columns[ColumnNumber],
		Status:      columns[ColumnStatus],
		Title:       columns[ColumnTitle],
		Type:        columns[ColumnType],
		Priority:    columns[ColumnPriority],
		Severity:    columns[ColumnSeverity],
		Subsystem:   columns[ColumnSubsystem],
		Description: columns[ColumnDescription],
		Labels:      splitLabels(columns[ColumnLabels]),
		URL:         TicketURL(baseURL, columns[ColumnNumber]),
		Columns:     columns,
	}
	t.Columns[ColumnURL] = t.URL
	return t
}

// TicketURL returns the tktview page for ticket number under baseURL.
// baseURL must end with a slash.
func TicketURL(baseURL, number string) string {
	return baseURL + "tktview/" + number
}

// splitLabels splits a labels cell on commas and whitespace.
func splitLabels(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// SplitKey splits a PROJECT-NUMBER identity key on its last dash.
// A key without a dash has no project.
func SplitKey(key string) (project, number string) {
	idx := strings.LastIndex(key, "-")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}
