package domain

import "unique"

// Name is an interned string used for variable names, target names and
// other identifiers that repeat across the target graph. Two Names built
// from equal strings compare equal with ==.
type Name struct {
	h unique.Handle[string]
}

// N interns s and returns it as a Name.
func N(s string) Name {
	return Name{h: unique.Make(s)}
}

// String returns the underlying string. The zero Name renders as "".
func (n Name) String() string {
	var zero unique.Handle[string]
	if n.h == zero {
		return ""
	}
	return n.h.Value()
}

// Empty reports whether n is the zero Name or interns the empty string.
func (n Name) Empty() bool {
	return n.String() == ""
}

// MarshalText implements encoding.TextMarshaler.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Name) UnmarshalText(text []byte) error {
	n.h = unique.Make(string(text))
	return nil
}
