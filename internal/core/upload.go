package core

// upload.go parses participant CSV files.
//
// Files come from spreadsheets exported on many platforms, so the reader
// strips a UTF-8 byte order mark, replaces invalid UTF-8 with '?', trims
// spreadsheet artifacts from headers, and tolerates ragged rows.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmptyFile is returned when an upload has no header row.
var ErrEmptyFile = errors.New("empty file: no header row")

// ReadUpload parses a CSV stream. maxRows limits data rows; zero means no limit.
func ReadUpload(r io.Reader, fileName string, maxRows int) (*Upload, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}

	up := &Upload{FileName: fileName, Headers: make([]string, len(header))}
	for i, h := range header {
		up.Headers[i] = CleanCell(sanitizeUTF8(h))
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv at line %d: %w", line, err)
		}
		if isBlankRow(rec) {
			continue
		}
		if maxRows > 0 && len(up.Rows) == maxRows {
			return nil, fmt.Errorf("file too large: more than %d rows", maxRows)
		}
		for i := range rec {
			rec[i] = sanitizeUTF8(rec[i])
		}
		up.Rows = append(up.Rows, rec)
	}
	return up, nil
}

func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "?")
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
