package importer

import "strings"

// Column describes one expected field of the tabular input. Header matching
// is case-insensitive. A column with an Enum domain folds unrecognized
// values into Default instead of failing the row.
type Column struct {
	Name     string
	Required bool
	Enum     []string
	Default  string
}

// Schema is the row descriptor an import strategy parses against
type Schema struct {
	Columns []Column
}

func (s Schema) column(header string) (Column, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, header) {
			return c, true
		}
	}
	return Column{}, false
}

func (c Column) normalizeEnum(value string) string {
	for _, e := range c.Enum {
		if strings.EqualFold(e, value) {
			return e
		}
	}
	return c.Default
}
