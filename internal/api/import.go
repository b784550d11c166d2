package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"clarity-disputes/backend/internal/store"
)

type ticketColumns struct {
	title, description, email, value, category int
}

var defaultColumns = ticketColumns{title: 0, description: 1, email: 2, value: 3, category: 4}

type csvParseResult struct {
	tickets  []store.Ticket
	rowCount int
	errors   []string
}

// parseTicketCSV reads tickets from r. A header row is detected by column names;
// without one the columns are title, description, customer_email, dispute_value, category.
// Rows that cannot be parsed are reported and skipped.
func parseTicketCSV(r io.Reader) (*csvParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		cols            = defaultColumns
		headerProcessed bool
		result          = &csvParseResult{}
		line            int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		if !headerProcessed {
			headerProcessed = true
			if detected, ok := detectTicketColumns(record); ok {
				cols = detected
				continue
			}
		}

		result.rowCount++
		ticket, err := ticketFromRecord(record, cols)
		if err != nil {
			result.errors = append(result.errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.tickets = append(result.tickets, ticket)
	}
	return result, nil
}

func detectTicketColumns(record []string) (ticketColumns, bool) {
	cols := ticketColumns{title: -1, description: -1, email: -1, value: -1, category: -1}
	for idx, raw := range record {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "title", "subject":
			cols.title = idx
		case "description", "details":
			cols.description = idx
		case "customer_email", "email", "customer":
			cols.email = idx
		case "dispute_value", "amount", "value":
			cols.value = idx
		case "category", "type":
			cols.category = idx
		}
	}
	if cols.email < 0 || cols.value < 0 {
		return defaultColumns, false
	}
	return cols, true
}

func ticketFromRecord(record []string, cols ticketColumns) (store.Ticket, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	email := field(cols.email)
	if email == "" || !strings.Contains(email, "@") {
		return store.Ticket{}, fmt.Errorf("invalid customer email %q", email)
	}
	rawValue := strings.TrimPrefix(field(cols.value), "$")
	value, err := strconv.ParseFloat(strings.ReplaceAll(rawValue, ",", ""), 64)
	if err != nil || value < 0 {
		return store.Ticket{}, fmt.Errorf("invalid dispute value %q", field(cols.value))
	}
	title := field(cols.title)
	if title == "" {
		title = "Imported dispute"
	}
	return store.Ticket{
		Title:         title,
		Description:   field(cols.description),
		CustomerEmail: email,
		DisputeValue:  value,
		Category:      field(cols.category),
	}, nil
}
