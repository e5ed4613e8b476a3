// internal/catalog/transfer.go
package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lendingdesk/internal/errs"
)

const (
	fieldSeparator = "|"
	fieldCount     = 6
)

// LineError describes why one import line was skipped.
type LineError struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ImportResult summarises a catalog import.
type ImportResult struct {
	Imported int         `json:"imported"`
	Errors   []LineError `json:"errors"`
}

// Import reads pipe-delimited item lines from r and adds each one to svc.
// Bad lines are collected in the result; only read failures abort the import.
// Lines have no length limit.
func Import(ctx context.Context, svc Service, r io.Reader) (ImportResult, error) {
	result := ImportResult{Errors: []LineError{}}
	reader := bufio.NewReader(r)

	lineNo := 0
	for {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return result, fmt.Errorf("read catalog line %d: %w", lineNo+1, readErr)
		}
		if raw == "" && readErr != nil {
			break
		}

		lineNo++
		if line := strings.TrimSpace(raw); line != "" {
			if err := importLine(ctx, svc, line); err != nil {
				result.Errors = append(result.Errors, LineError{
					Line:    lineNo,
					Kind:    errs.KindOf(err).String(),
					Message: err.Error(),
				})
			} else {
				result.Imported++
			}
		}

		if readErr != nil {
			break
		}
	}

	return result, nil
}

func importLine(ctx context.Context, svc Service, line string) error {
	const op = "import"
	fields := strings.Split(line, fieldSeparator)
	if len(fields) != fieldCount {
		return errs.Validation(op, "expected %d fields, got %d", fieldCount, len(fields))
	}
	id, title, author, category := fields[0], fields[1], fields[2], fields[4]

	if _, err := svc.GetItem(id); err == nil {
		return errs.Duplicate(op, "item", id)
	}

	year, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return errs.Validation(op, "invalid year %q", fields[3])
	}
	copies, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return errs.Validation(op, "invalid copy count %q", fields[5])
	}

	_, err = svc.AddItem(ctx, id, title, author, year, category, copies)
	return err
}

// ErrUnencodable is returned by Export when a field would break the line format.
var ErrUnencodable = errors.New("field contains a separator or line break")

// Export writes one line per item in catalog order.
func Export(w io.Writer, svc Service) error {
	var lines []string
	for item := range svc.Items() {
		for _, field := range []string{item.ID, item.Title, item.Author, item.Category} {
			if strings.ContainsAny(field, fieldSeparator+"\r\n") {
				return fmt.Errorf("export item %s: %w", item.ID, ErrUnencodable)
			}
		}
		lines = append(lines, strings.Join([]string{
			item.ID,
			item.Title,
			item.Author,
			strconv.Itoa(item.Year),
			item.Category,
			strconv.Itoa(item.TotalCopies),
		}, fieldSeparator))
	}

	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write catalog: %w", err)
		}
	}
	return bw.Flush()
}

