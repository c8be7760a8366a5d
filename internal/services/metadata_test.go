package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRecordAbbreviatedMonth(t *testing.T) {
	text := "FEDERAL GOVERNMENT OF NIGERIA\nPay period: OCT-2023\nIPPIS No: 123456\n"

	record := ExtractRecord(text)

	require.NotNil(t, record)
	assert.Equal(t, "2023", record.Year)
	assert.Equal(t, "10", record.Month)
	assert.Equal(t, "123456", record.Identifier)
}

func TestExtractRecordFullMonthName(t *testing.T) {
	text := "Payslip for October 2023\nStaff ID 654321"

	record := ExtractRecord(text)

	require.NotNil(t, record)
	assert.Equal(t, "2023", record.Year)
	assert.Equal(t, "10", record.Month)
	assert.Equal(t, "654321", record.Identifier)
}

func TestExtractRecordMonthYearPairOverridesEarlierYear(t *testing.T) {
	// A stray year token earlier in the text must not displace the year that
	// sits next to the month.
	text := "Printed 2021\nPeriod: JAN 2024\nIPPIS 111222"

	record := ExtractRecord(text)

	require.NotNil(t, record)
	assert.Equal(t, "2024", record.Year)
	assert.Equal(t, "01", record.Month)
}

func TestExtractRecordIdentifierMustBeExactlySixDigits(t *testing.T) {
	assert.Nil(t, ExtractRecord("MAY 2023 staff number 12345"))
	assert.Nil(t, ExtractRecord("MAY 2023 staff number 1234567"))

	record := ExtractRecord("MAY 2023 staff number 123456.")
	require.NotNil(t, record)
	assert.Equal(t, "123456", record.Identifier)
}

func TestExtractRecordPartialDetailsYieldNil(t *testing.T) {
	assert.Nil(t, ExtractRecord(""))
	assert.Nil(t, ExtractRecord("OCT-2023 but no identifier"))
	assert.Nil(t, ExtractRecord("identifier 123456 but no period"))
	assert.Nil(t, ExtractRecord("year 2023 and id 123456 but no month"))
}

func TestExtractRecordMonthMatchingIsCaseInsensitive(t *testing.T) {
	record := ExtractRecord("period oct 2023, ippis 123456")

	require.NotNil(t, record)
	assert.Equal(t, "10", record.Month)
}
