package models

import "strings"

// Gender codes accepted on an ID card record.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// Record is the structured data read from one ID card.
type Record struct {
	Surname     string `json:"surname"`     // Family name
	FirstName   string `json:"firstName"`   // Given name(s)
	Gender      string `json:"gender"`      // "M" or "F"; other values are kept as returned
	DateOfBirth string `json:"dateOfBirth"` // YYYY-MM-DD when it could be normalized
	IDNumber    string `json:"idNumber"`    // Document number as printed
}

// Field is one named value of a Record, in export order.
type Field struct {
	Name  string // JSON field name, e.g. "dateOfBirth"
	Value string
}

// Fields returns the record's values in canonical order.
func (r Record) Fields() []Field {
	return []Field{
		{Name: "surname", Value: r.Surname},
		{Name: "firstName", Value: r.FirstName},
		{Name: "gender", Value: r.Gender},
		{Name: "dateOfBirth", Value: r.DateOfBirth},
		{Name: "idNumber", Value: r.IDNumber},
	}
}

// MissingFields lists the JSON names of empty fields.
func (r Record) MissingFields() []string {
	var missing []string
	for _, f := range r.Fields() {
		if strings.TrimSpace(f.Value) == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// IsComplete reports whether every field has a value.
func (r Record) IsComplete() bool {
	return len(r.MissingFields()) == 0
}

// Label turns a field name into a human-readable label ("dateOfBirth" -> "Date Of Birth").
func Label(name string) string {
	var b strings.Builder
	for i, c := range name {
		if i > 0 && c >= 'A' && c <= 'Z' {
			b.WriteByte(' ')
		}
		if i == 0 && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}
