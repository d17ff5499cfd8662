package fossil

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// ParseReport parses the tab-separated output of rptview?tablist=1.
//
// The first line is the header. Every following line is trimmed of
// surrounding whitespace and, unless blank, zipped against the header
// positionally up to the shorter of the two. Rows without a ticket number
// are skipped. Each ticket gets a url under baseURL.
func ParseReport(text, baseURL string) ([]Ticket, error) {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	if text == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	header := strings.Split(strings.TrimSpace(lines[0]), "\t")
	if !slices.Contains(header, ColumnNumber) {
		return nil, fmt.Errorf(
			"report header has no %q column: %q", ColumnNumber, lines[0],
		)
	}

	tickets := make([]Ticket, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		n := len(header)
		if len(fields) < n {
			n = len(fields)
		}

		columns := make(map[string]string, n+1)
		for i := 0; i < n; i++ {
			columns[header[i]] = fields[i]
		}
		if columns[ColumnNumber] == "" {
			continue
		}

		tickets = append(tickets, newTicket(columns, baseURL))
	}

	return tickets, nil
}

// FilterOpen returns the tickets whose status is exactly "Open".
func FilterOpen(tickets []Ticket) []Ticket {
	open := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.Status == StatusOpen {
			open = append(open, t)
		}
	}
	return open
}
