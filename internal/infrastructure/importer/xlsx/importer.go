// Package xlsx parses application spreadsheets exported from other trackers.
// The first sheet is read; columns are located by header name, so column
// order does not matter.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Recognized header names, lowercased. Several aliases cover common exports.
var headerAliases = map[string]string{
	"job title":     "job_title",
	"job_title":     "job_title",
	"title":         "job_title",
	"position":      "job_title",
	"role":          "job_title",
	"company":       "company_name",
	"company name":  "company_name",
	"company_name":  "company_name",
	"employer":      "company_name",
	"status":        "status",
	"stage":         "status",
	"job type":      "job_type",
	"job_type":      "job_type",
	"location type": "location_type",
	"location_type": "location_type",
	"location":      "location",
}

func (p *Parser) Parse(r io.Reader) ([]domain.Application, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return []domain.Application{}, nil
	}

	columns := mapColumns(rows[0])
	if _, ok := columns["company_name"]; !ok {
		return nil, fmt.Errorf("sheet %q has no company column", sheet)
	}
	if _, ok := columns["job_title"]; !ok {
		return nil, fmt.Errorf("sheet %q has no job title column", sheet)
	}

	out := make([]domain.Application, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		app := domain.Application{
			JobTitle:     cell(row, columns, "job_title"),
			CompanyName:  cell(row, columns, "company_name"),
			Status:       normalizeStatus(cell(row, columns, "status")),
			JobType:      domain.JobType(normalizeToken(cell(row, columns, "job_type"))),
			LocationType: domain.LocationType(normalizeToken(cell(row, columns, "location_type"))),
			Location:     cell(row, columns, "location"),
		}
		out = append(out, app)
	}
	return out, nil
}

func mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for idx, name := range header {
		key, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, seen := columns[key]; !seen {
			columns[key] = idx
		}
	}
	return columns
}

func cell(row []string, columns map[string]int, key string) string {
	idx, ok := columns[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func normalizeStatus(raw string) domain.ApplicationStatus {
	status := domain.ApplicationStatus(normalizeToken(raw))
	if status == "" {
		return ""
	}
	if status.Valid() {
		return status
	}
	// Unknown stage labels still import; the row just starts at saved.
	return domain.StatusSaved
}

func normalizeToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.ReplaceAll(token, " ", "_")
	return strings.ReplaceAll(token, "-", "_")
}
