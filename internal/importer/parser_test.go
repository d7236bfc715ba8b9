package importer_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mvrezende/event-pipeline/internal/importer"
)

func customerSchema() importer.Schema {
	return importer.Schema{
		Columns: []importer.Column{
			{Name: "name", Required: true},
			{Name: "email"},
			{Name: "status", Enum: []string{"ACTIVE", "INACTIVE"}, Default: "ACTIVE"},
		},
	}
}

func TestParseRowsMatchesHeadersCaseInsensitively(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("NAME,Email,STATUS\nAlice,alice@example.com,ACTIVE\n")

	rows, err := importer.ParseRows(in, customerSchema(), importer.ParseOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Fields["name"] != "Alice" || rows[0].Fields["email"] != "alice@example.com" {
		t.Fatalf("unexpected fields %v", rows[0].Fields)
	}
}

func TestParseRowsIgnoresUnknownColumns(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("name,shoe_size\nAlice,42\n")

	rows, err := importer.ParseRows(in, customerSchema(), importer.ParseOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := rows[0].Fields["shoe_size"]; ok {
		t.Fatal("unknown column must be ignored")
	}
	if rows[0].Fields["name"] != "Alice" {
		t.Fatalf("unexpected fields %v", rows[0].Fields)
	}
}

func TestParseRowsFoldsUnknownEnumValuesIntoDefault(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("name,status\nAlice,WHATEVER\nBob,inactive\n")

	rows, err := importer.ParseRows(in, customerSchema(), importer.ParseOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rows[0].Fields["status"] != "ACTIVE" {
		t.Fatalf("expected declared default for unknown enum value, got %q", rows[0].Fields["status"])
	}
	if rows[1].Fields["status"] != "INACTIVE" {
		t.Fatalf("expected case-insensitive enum match, got %q", rows[1].Fields["status"])
	}
}

func TestParseRowsHonorsCustomDelimiter(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("name;email\nAlice;alice@example.com\n")

	rows, err := importer.ParseRows(in, customerSchema(), importer.ParseOptions{Delimiter: ';'})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rows[0].Fields["email"] != "alice@example.com" {
		t.Fatalf("unexpected fields %v", rows[0].Fields)
	}
}

func TestParseRowsFailsFastOnMissingRequiredColumn(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("email,status\nalice@example.com,ACTIVE\n")

	_, err := importer.ParseRows(in, customerSchema(), importer.ParseOptions{})
	if !errors.Is(err, importer.ErrFatalParse) {
		t.Fatalf("expected ErrFatalParse, got %v", err)
	}
}

func TestParseRowsFailsFastOnMalformedStream(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("name,email\n\"Alice,alice@example.com\n")

	_, err := importer.ParseRows(in, customerSchema(), importer.ParseOptions{})
	if !errors.Is(err, importer.ErrFatalParse) {
		t.Fatalf("expected ErrFatalParse, got %v", err)
	}
}

func TestParseRowsFailsFastOnEmptyStream(t *testing.T) {
	t.Parallel()

	_, err := importer.ParseRows(strings.NewReader(""), customerSchema(), importer.ParseOptions{})
	if !errors.Is(err, importer.ErrFatalParse) {
		t.Fatalf("expected ErrFatalParse, got %v", err)
	}
}

func TestParseRowsTranscodesWindows1252(t *testing.T) {
	t.Parallel()

	// "José" with the Windows-1252 single-byte é (0xE9)
	raw := append([]byte("name\nJos"), 0xE9, '\n')

	rows, err := importer.ParseRows(bytes.NewReader(raw), customerSchema(), importer.ParseOptions{Windows1252: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rows[0].Fields["name"] != "José" {
		t.Fatalf("expected transcoded name, got %q", rows[0].Fields["name"])
	}
}
