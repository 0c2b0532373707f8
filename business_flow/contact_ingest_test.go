package businessflow

import (
	"fmt"
	"strings"
	"testing"

	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func ingest(t *testing.T, filename, content string, mapping models.FieldMapping) IngestResult {
	t.Helper()
	table, err := parseContactFile(filename, []byte(content))
	require.NoError(t, err)
	return buildContacts(1, table, mapping)
}

func TestIngest_ShortPhoneRejected(t *testing.T) {
	result := ingest(t, "contacts.csv", "Name,Phone\nBob,555\n", models.FieldMapping{"phone_number": "Phone"})

	assert.Empty(t, result.Contacts)
	assert.Equal(t, []string{"Row 2: Invalid phone number or missing required fields"}, result.Errors)
	assert.Equal(t, 1, result.TotalProcessed)
}

func TestIngest_MapsFieldsAndCustomFields(t *testing.T) {
	content := "First, Last ,Phone,Email,Plan\r\n" +
		"  Ana , Silva ,+1 (415) 555-0000, ana@example.com ,gold\r\n"
	mapping := models.FieldMapping{
		"first_name":   "First",
		"last_name":    "Last",
		"phone_number": "Phone",
		"email":        "Email",
		"plan":         "Plan",
	}

	result := ingest(t, "contacts.csv", content, mapping)
	require.Len(t, result.Contacts, 1)
	c := result.Contacts[0]
	assert.Equal(t, "Ana", utils.Deref(c.FirstName))
	assert.Equal(t, "Silva", utils.Deref(c.LastName))
	assert.Equal(t, "+14155550000", c.PhoneNumber)
	assert.Equal(t, "ana@example.com", utils.Deref(c.Email))
	assert.Equal(t, models.CustomFields{"plan": "gold"}, c.CustomFields)
	assert.Equal(t, models.ContactStatusPending, c.Status)
	assert.Equal(t, uint(1), c.CampaignID)
}

func TestIngest_UnmappedFieldsStayNull(t *testing.T) {
	result := ingest(t, "c.csv", "Phone,First\n4155550000,\n", models.FieldMapping{"phone_number": "Phone", "first_name": "First"})
	require.Len(t, result.Contacts, 1)
	assert.Nil(t, result.Contacts[0].FirstName)
	assert.Nil(t, result.Contacts[0].Email)
	assert.Nil(t, result.Contacts[0].CustomFields)
}

func TestIngest_ColumnCountMismatchDroppedSilently(t *testing.T) {
	content := strings.Join([]string{
		"Name,Phone",
		"Ana,4155550000",
		"Bob,4155550001,extra",
		"Carl",
		"",
		"Dina,123",
		"Eve,\"415 555 0002\"",
	}, "\n")

	result := ingest(t, "c.csv", content, models.FieldMapping{"phone_number": "Phone"})
	assert.Len(t, result.Contacts, 2)
	assert.Equal(t, []string{"Row 6: Invalid phone number or missing required fields"}, result.Errors)
	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, "4155550002", result.Contacts[1].PhoneNumber)
}

func TestIngest_MissingPhoneColumn(t *testing.T) {
	result := ingest(t, "c.csv", "Name,Mobile\nAna,4155550000\n", models.FieldMapping{"phone_number": "Phone"})
	assert.Empty(t, result.Contacts)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.TotalProcessed)
}

func TestIngest_CountsAlwaysAddUp(t *testing.T) {
	var b strings.Builder
	b.WriteString("Phone,Name\n")
	for i := range 40 {
		phone := fmt.Sprintf("+1415555%04d", i)
		if i%3 == 0 {
			phone = fmt.Sprintf("55%d", i)
		}
		fmt.Fprintf(&b, "%s,n%d\n", phone, i)
		if i%7 == 0 {
			b.WriteString("broken\n")
		}
	}

	result := ingest(t, "c.csv", b.String(), models.FieldMapping{"phone_number": "Phone"})
	assert.Equal(t, result.TotalProcessed, len(result.Contacts)+len(result.Errors))
	for _, c := range result.Contacts {
		assert.GreaterOrEqual(t, utils.PhoneDigitCount(c.PhoneNumber), 10)
	}
}

func TestParseContactFile_Errors(t *testing.T) {
	_, err := parseContactFile("c.csv", []byte("\n\nPhone\n"))
	assert.ErrorIs(t, err, ErrContactFileEmpty)
	assert.True(t, IsValidationError(err))

	_, err = parseContactFile("c.pdf", []byte("Phone\n"))
	assert.ErrorIs(t, err, ErrUnsupportedContactFile)
}

func TestParseContactFile_BOMAndHeaders(t *testing.T) {
	headers, err := ReadContactHeaders("c.txt", []byte("\xef\xbb\xbfName , Phone\nAna,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Phone"}, headers)
}

func TestParseContactFile_XLSX(t *testing.T) {
	xl := excelize.NewFile()
	sheet := xl.GetSheetName(0)
	rows := [][]any{
		{"Name", "Phone", "City"},
		{"Ana", "+14155550000", "Lisbon"},
		{"Bob", "4155550001"},
		{"Carl", "555", "Rome"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, xl.SetSheetRow(sheet, cell, &row))
	}
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, xl.Close())

	table, err := parseContactFile("contacts.xlsx", buf.Bytes())
	require.NoError(t, err)
	result := buildContacts(9, table, models.FieldMapping{"phone_number": "Phone", "city": "City"})

	require.Len(t, result.Contacts, 2)
	assert.Equal(t, "Lisbon", result.Contacts[0].CustomFields["city"])
	assert.Equal(t, "", result.Contacts[1].CustomFields["city"])
	assert.Equal(t, []string{"Row 4: Invalid phone number or missing required fields"}, result.Errors)
	assert.Equal(t, 3, result.TotalProcessed)
}
