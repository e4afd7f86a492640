// Package export renders submission lists as XLSX, CSV, JSON or XML files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"iuran/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	monthLayout     = "2006-01"
	sheetName       = "Iuran"
)

// Columns is the flat table header shared by every format.
var Columns = []string{
	"No", "Nama Jamaah", "Username", "Bulan",
	"Iuran 1", "Iuran 2", "Iuran 3", "Iuran 4", "Iuran 5",
	"Total", "Submitted At",
}

// ParseFormat maps a query value to a Format. Empty means XLSX.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatJSON, FormatXML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXML:
		return "application/xml; charset=utf-8"
	}
	return "application/octet-stream"
}

// Filename returns iuran-export-YYYYMMDD-HHMMSS.<ext>.
func Filename(f Format, at time.Time) string {
	return fmt.Sprintf("iuran-export-%s.%s", at.Format("20060102-150405"), f)
}

// Row is one flattened submission.
type Row struct {
	No          int             `json:"no" xml:"no"`
	NamaJamaah  string          `json:"nama_jamaah" xml:"nama_jamaah"`
	Username    string          `json:"username" xml:"username"`
	Bulan       string          `json:"bulan" xml:"bulan"`
	Iuran1      decimal.Decimal `json:"iuran_1" xml:"iuran_1"`
	Iuran2      decimal.Decimal `json:"iuran_2" xml:"iuran_2"`
	Iuran3      decimal.Decimal `json:"iuran_3" xml:"iuran_3"`
	Iuran4      decimal.Decimal `json:"iuran_4" xml:"iuran_4"`
	Iuran5      decimal.Decimal `json:"iuran_5" xml:"iuran_5"`
	Total       decimal.Decimal `json:"total" xml:"total"`
	SubmittedAt string          `json:"submitted_at" xml:"submitted_at"`
}

// Rows flattens submissions in order, numbering from 1.
func Rows(submissions []model.IuranSubmission) []Row {
	rows := make([]Row, 0, len(submissions))
	for i, s := range submissions {
		rows = append(rows, Row{
			No:          i + 1,
			NamaJamaah:  s.NamaJamaah,
			Username:    s.Username,
			Bulan:       s.Month().Format(monthLayout),
			Iuran1:      s.Iuran1,
			Iuran2:      s.Iuran2,
			Iuran3:      s.Iuran3,
			Iuran4:      s.Iuran4,
			Iuran5:      s.Iuran5,
			Total:       s.TotalIuran,
			SubmittedAt: s.TimestampSubmitted.UTC().Format(timestampLayout),
		})
	}
	return rows
}

func (r Row) cells() []string {
	return []string{
		strconv.Itoa(r.No), r.NamaJamaah, r.Username, r.Bulan,
		r.Iuran1.StringFixed(2), r.Iuran2.StringFixed(2), r.Iuran3.StringFixed(2),
		r.Iuran4.StringFixed(2), r.Iuran5.StringFixed(2),
		r.Total.StringFixed(2), r.SubmittedAt,
	}
}

// Write renders submissions in format f to w.
func Write(w io.Writer, f Format, submissions []model.IuranSubmission, exportedAt time.Time) error {
	rows := Rows(submissions)
	stamp := exportedAt.UTC().Format(timestampLayout)

	switch f {
	case FormatXLSX:
		return writeXLSX(w, rows, stamp)
	case FormatCSV:
		return writeCSV(w, rows, stamp)
	case FormatJSON:
		return writeJSON(w, rows, stamp)
	case FormatXML:
		return writeXML(w, rows, stamp)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

func writeCSV(w io.Writer, rows []Row, stamp string) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"Exported At", stamp},
		{"Total Records", strconv.Itoa(len(rows))},
		{},
		Columns,
	}
	for _, r := range rows {
		records = append(records, r.cells())
	}
	return cw.WriteAll(records)
}

type jsonEnvelope struct {
	ExportedAt   string `json:"exported_at"`
	TotalRecords int    `json:"total_records"`
	Data         []Row  `json:"data"`
}

func writeJSON(w io.Writer, rows []Row, stamp string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonEnvelope{ExportedAt: stamp, TotalRecords: len(rows), Data: rows})
}

type xmlEnvelope struct {
	XMLName      xml.Name `xml:"export"`
	ExportedAt   string   `xml:"exported_at"`
	TotalRecords int      `xml:"total_records"`
	Submissions  []Row    `xml:"submissions>submission"`
}

func writeXML(w io.Writer, rows []Row, stamp string) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(xmlEnvelope{ExportedAt: stamp, TotalRecords: len(rows), Submissions: rows}); err != nil {
		return err
	}
	return enc.Flush()
}

func writeXLSX(w io.Writer, rows []Row, stamp string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}

	header := [][]interface{}{
		{"Exported At", stamp},
		{"Total Records", len(rows)},
		{},
		toInterfaces(Columns),
	}
	for i, values := range header {
		if len(values) == 0 {
			continue
		}
		if err := setRow(f, i+1, values); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(sheetName, "A4", lastCol+"4", bold); err != nil {
		return err
	}

	for i, r := range rows {
		values := []interface{}{
			r.No, r.NamaJamaah, r.Username, r.Bulan,
			r.Iuran1.InexactFloat64(), r.Iuran2.InexactFloat64(), r.Iuran3.InexactFloat64(),
			r.Iuran4.InexactFloat64(), r.Iuran5.InexactFloat64(),
			r.Total.InexactFloat64(), r.SubmittedAt,
		}
		if err := setRow(f, len(header)+i+1, values); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cell, &values)
}

func toInterfaces(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
