package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadFirstSheet(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Code", "Full Name", "Personal Email", "Role", "Active", "Position"},
		{" ab12345 ", "Ada Byron", "ada@example.com", "Teacher", "yes", "Lecturer"},
		{"", "", "", "", "", ""},
		{"CD67890", "Charles Babbage", "", "Student", "", ""},
	})

	sheet, err := ReadFirstSheet(buf)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet.Name)
	assert.Equal(t, []string{"Code", "Full Name", "Personal Email", "Role", "Active", "Position"}, sheet.Header)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, 1, sheet.Rows[0].Number)
	assert.Equal(t, "ab12345", sheet.Rows[0].Cell(0))
	assert.Equal(t, "Lecturer", sheet.Rows[0].Cell(5))

	assert.Equal(t, 3, sheet.Rows[1].Number)
	assert.Equal(t, "", sheet.Rows[1].Cell(5))
	assert.Equal(t, "", sheet.Rows[1].Cell(42))
}

func TestReadFirstSheetHeaderOnly(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{{"Code", "Full Name"}})

	sheet, err := ReadFirstSheet(buf)
	require.NoError(t, err)
	assert.Len(t, sheet.Header, 2)
	assert.Empty(t, sheet.Rows)
}

func TestReadFirstSheetRejectsGarbage(t *testing.T) {
	_, err := ReadFirstSheet(bytes.NewBufferString("not a workbook"))
	assert.Error(t, err)
}

func TestRowBlank(t *testing.T) {
	assert.True(t, Row{Cells: []string{" ", ""}}.Blank())
	assert.False(t, Row{Cells: []string{"", "x"}}.Blank())
	assert.True(t, Row{}.Blank())
}
