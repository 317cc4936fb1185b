package dataset

import (
	"strconv"
	"time"
)

// ValueKind tags which field of a Value is populated
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindBool   ValueKind = "bool"
	KindNumber ValueKind = "number"
	KindText   ValueKind = "text"
	KindDate   ValueKind = "date"
)

// Value is a single cell. The parser only produces KindText and KindNull;
// typed kinds are produced by the coercer from the text form.
type Value struct {
	Kind ValueKind `json:"kind"`
	Bool bool      `json:"bool,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Text string    `json:"text,omitempty"`
	Time time.Time `json:"time,omitempty"`
}

// NullValue creates a missing value
func NullValue() Value {
	return Value{Kind: KindNull}
}

// NewTextValue creates a text value; empty text is null
func NewTextValue(s string) Value {
	if s == "" {
		return NullValue()
	}
	return Value{Kind: KindText, Text: s}
}

// NewNumberValue creates a numeric value
func NewNumberValue(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// NewBoolValue creates a boolean value
func NewBoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// NewDateValue creates a date value
func NewDateValue(t time.Time) Value {
	return Value{Kind: KindDate, Time: t}
}

// IsNull reports whether the cell is missing
func (v Value) IsNull() bool {
	return v.Kind == KindNull || v.Kind == ""
}

// String returns the display form of the value
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format(time.RFC3339)
	}
	return ""
}
