// Package export writes an ID card record as JSON, CSV, PDF or XLSX.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"cardscan/pkg/models"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// baseName is the file name stem used for downloads.
const baseName = "id_card_data"

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want json, csv, pdf or xlsx)", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// FileName returns the download file name for f.
func (f Format) FileName() string {
	return baseName + "." + string(f)
}

// Write encodes record in format f to w.
func Write(w io.Writer, f Format, record models.Record) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = JSON(record)
	case FormatCSV:
		data = CSV(record)
	case FormatPDF:
		data, err = PDF(record)
	case FormatXLSX:
		data, err = XLSX(record)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", f, err)
	}
	_, err = w.Write(data)
	return err
}

// JSON returns record pretty-printed with a two-space indent.
func JSON(record models.Record) ([]byte, error) {
	return json.MarshalIndent(record, "", "  ")
}

// CSV returns a header row of field names and one row of values. Every value is
// double-quoted, with embedded quotes doubled.
func CSV(record models.Record) []byte {
	fields := record.Fields()
	names := make([]string, len(fields))
	values := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		values[i] = `"` + strings.ReplaceAll(f.Value, `"`, `""`) + `"`
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Join(names, ","))
	buf.WriteByte('\n')
	buf.WriteString(strings.Join(values, ","))
	return buf.Bytes()
}

// XLSX returns a workbook with a labeled header row and one row of values.
func XLSX(record models.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "ID Card"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, field := range record.Fields() {
		header, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("xlsx header cell: %w", err)
		}
		value, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, fmt.Errorf("xlsx value cell: %w", err)
		}
		if err := f.SetCellValue(sheet, header, models.Label(field.Name)); err != nil {
			return nil, fmt.Errorf("xlsx set header %s: %w", header, err)
		}
		if err := f.SetCellStr(sheet, value, field.Value); err != nil {
			return nil, fmt.Errorf("xlsx set value %s: %w", value, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "E", 20); err != nil {
		return nil, fmt.Errorf("xlsx column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
