package core

import "strings"

// refSeparator joins a template id and an occurrence month in the wire form
// of a TxRef. Document ids are UUIDs and never contain it.
const refSeparator = "#"

// TxRef addresses either a stored transaction (Month is zero) or one virtual
// occurrence of a recurring template.
type TxRef struct {
	ID    string
	Month YearMonth
}

// IsVirtual reports whether the ref points at a single occurrence.
func (r TxRef) IsVirtual() bool {
	return !r.Month.IsZero()
}

// TemplateID is the stored document behind the ref.
func (r TxRef) TemplateID() string {
	return r.ID
}

func (r TxRef) String() string {
	if !r.IsVirtual() {
		return r.ID
	}
	return r.ID + refSeparator + r.Month.String()
}

// ParseTxRef accepts "<id>" or "<id>#YYYY-MM".
func ParseTxRef(s string) (TxRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TxRef{}, &ValidationError{Field: "id", Reason: "empty transaction reference"}
	}
	id, month, found := strings.Cut(s, refSeparator)
	if !found {
		return TxRef{ID: s}, nil
	}
	if id == "" {
		return TxRef{}, &ValidationError{Field: "id", Reason: "missing template id"}
	}
	ym, err := ParseYearMonth(month)
	if err != nil {
		return TxRef{}, err
	}
	return TxRef{ID: id, Month: ym}, nil
}
