package businessflow

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/utils"
	"github.com/xuri/excelize/v2"
)

// Fixed contact schema keys of a field mapping
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldPhoneNumber = "phone_number"
	FieldEmail       = "email"
)

const invalidRowFormat = "Row %d: Invalid phone number or missing required fields"

// contactRow is one structurally valid data row and its 1-based line number
type contactRow struct {
	Line   int
	Values []string
}

// contactTable is a parsed contact file
type contactTable struct {
	Header []string
	Rows   []contactRow
}

// IngestResult is the outcome of mapping and validating a contact table
type IngestResult struct {
	Contacts       []*models.CampaignContact
	Errors         []string
	TotalProcessed int
}

// parseContactFile dispatches on the file extension
func parseContactFile(filename string, content []byte) (*contactTable, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return parseXLSX(content)
	case "", ".csv", ".txt":
		return parseCSV(content)
	default:
		return nil, ErrUnsupportedContactFile
	}
}

// parseCSV splits content into lines, reads the first line as the header and every
// non-blank following line as a record. Records whose column count differs from the
// header are dropped without an error.
func parseCSV(content []byte) (*contactTable, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	lines := strings.Split(string(content), "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, ErrContactFileEmpty
	}

	header, err := parseCSVLine(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrContactFileUnreadable, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &contactTable{Header: header}
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values, err := parseCSVLine(line)
		if err != nil || len(values) != len(header) {
			continue
		}
		table.Rows = append(table.Rows, contactRow{Line: i + 2, Values: values})
	}

	return table, nil
}

func parseCSVLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSuffix(line, "\r")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.Read()
}

// parseXLSX reads the first sheet. Spreadsheet rows drop trailing empty cells,
// so short rows are padded to the header width; longer rows are dropped.
func parseXLSX(content []byte) (*contactTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContactFileUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrContactFileEmpty
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContactFileUnreadable, err)
	}
	if len(rows) == 0 || isBlankRow(rows[0]) {
		return nil, ErrContactFileEmpty
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	table := &contactTable{Header: header}
	for i, row := range rows[1:] {
		if isBlankRow(row) || len(row) > len(header) {
			continue
		}
		values := make([]string, len(header))
		copy(values, row)
		table.Rows = append(table.Rows, contactRow{Line: i + 2, Values: values})
	}

	return table, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ReadContactHeaders returns the header tokens of a contact file
func ReadContactHeaders(filename string, content []byte) ([]string, error) {
	table, err := parseContactFile(filename, content)
	if err != nil {
		return nil, err
	}
	return table.Header, nil
}

// buildContacts maps rows through the field mapping and validates phone numbers
func buildContacts(campaignID uint, table *contactTable, mapping models.FieldMapping) IngestResult {
	columns := make(map[string]int, len(table.Header))
	for i, h := range table.Header {
		if _, seen := columns[h]; !seen {
			columns[h] = i
		}
	}

	result := IngestResult{Errors: []string{}}
	for _, row := range table.Rows {
		result.TotalProcessed++

		contact := &models.CampaignContact{
			CampaignID: campaignID,
			Status:     models.ContactStatusPending,
		}
		var phone string
		for field, column := range mapping {
			idx, ok := columns[strings.TrimSpace(column)]
			if !ok {
				continue
			}
			value := strings.TrimSpace(row.Values[idx])

			switch field {
			case FieldPhoneNumber:
				phone = value
			case FieldFirstName:
				contact.FirstName = optional(value)
			case FieldLastName:
				contact.LastName = optional(value)
			case FieldEmail:
				contact.Email = optional(value)
			default:
				if contact.CustomFields == nil {
					contact.CustomFields = models.CustomFields{}
				}
				contact.CustomFields[field] = value
			}
		}

		if !utils.IsValidPhone(phone) {
			result.Errors = append(result.Errors, fmt.Sprintf(invalidRowFormat, row.Line))
			continue
		}
		contact.PhoneNumber = utils.NormalizePhone(phone)
		result.Contacts = append(result.Contacts, contact)
	}

	return result
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
