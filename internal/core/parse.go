package core

// parse.go turns raw upload bytes into validated grade records.
//
// The accepted dialect is fixed: UTF-8, one record per non-blank line,
// fields separated by ';' with no quoting, an optional header line, and four
// leading columns (date; group; full name; grade). Extra columns are ignored.

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

const (
	fieldDelimiter = ";"
	minColumns     = 4

	msgNotUTF8       = "Файл не в кодировке UTF-8"
	msgEmptyFile     = "Пустой файл"
	msgTooFewColumns = "Мало колонок в строке"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header keywords, compared after trimming and lowercasing.
const headerDateKeyword = "дата"

var headerNameKeywords = []string{"фио", "фамилия"}

// Parser validates CSV content row by row.
type Parser struct {
	v *Validator
}

// NewParser returns a Parser using v for field validation.
func NewParser(v *Validator) *Parser {
	if v == nil {
		v = DefaultValidator()
	}
	return &Parser{v: v}
}

// Parse returns the valid rows and the row errors of content, both in file
// order. Neither slice is nil. A non-UTF-8 or empty file yields a single
// error at row 0 and no rows.
func (p *Parser) Parse(content []byte) ([]GradeRecord, []RowError) {
	rows := []GradeRecord{}
	errs := []RowError{}

	if !utf8.Valid(content) {
		return rows, append(errs, RowError{Row: 0, Detail: msgNotUTF8})
	}
	text := string(bytes.TrimPrefix(content, utf8BOM))

	var records [][]string
	for _, line := range splitLines(text) {
		if trimSpace(line) == "" {
			continue
		}
		records = append(records, strings.Split(line, fieldDelimiter))
	}
	if len(records) == 0 {
		return rows, append(errs, RowError{Row: 0, Detail: msgEmptyFile})
	}

	rowNum := 1
	if isHeader(records[0]) {
		records = records[1:]
		rowNum = 2
	}

	for i, fields := range records {
		row := rowNum + i
		if len(fields) < minColumns {
			errs = append(errs, RowError{Row: row, Detail: msgTooFewColumns})
			continue
		}
		rec, err := p.parseRecord(row, fields)
		if err != nil {
			errs = append(errs, RowError{Row: row, Detail: err.Error()})
			continue
		}
		rows = append(rows, rec)
	}
	return rows, errs
}

// parseRecord applies the validators in column order and stops at the first failure.
func (p *Parser) parseRecord(row int, fields []string) (GradeRecord, error) {
	date, err := p.v.ValidateDate(fields[0])
	if err != nil {
		return GradeRecord{}, err
	}
	group, err := p.v.ValidateGroup(fields[1])
	if err != nil {
		return GradeRecord{}, err
	}
	name, err := p.v.ValidateFullName(fields[2])
	if err != nil {
		return GradeRecord{}, err
	}
	grade, err := p.v.ValidateGrade(fields[3])
	if err != nil {
		return GradeRecord{}, err
	}
	return GradeRecord{Row: row, Date: date, Group: group, FullName: name, Grade: grade}, nil
}

// isHeader reports whether the first record looks like a column header line.
func isHeader(fields []string) bool {
	if len(fields) < minColumns {
		return false
	}
	norm := make([]string, len(fields))
	for i, f := range fields {
		norm[i] = strings.ToLower(trimSpace(f))
	}
	if norm[0] == headerDateKeyword {
		return true
	}
	for _, f := range norm {
		for _, kw := range headerNameKeywords {
			if f == kw {
				return true
			}
		}
	}
	return false
}

// splitLines splits on every line boundary recognized by universal newlines:
// \n, \r\n, \r, \v, \f, \x1c, \x1d, \x1e, \x85, U+2028 and U+2029.
// A trailing boundary does not produce an empty final line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				size++
			}
			start = i + size
		case '\n', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, s[start:i])
			start = i + size
		}
		i += size
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
