// Package options resolves the reference lists behind the registration
// selects: the province list, the city list keyed by the selected province,
// and the fixed gender choices.
package options

// Option is one selectable entry.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// List is an ordered option list.
type List []Option

// Clone returns a copy of l. A nil list stays nil.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	return append(List(nil), l...)
}

// Labels returns the display labels, falling back to the id when a label is
// empty.
func (l List) Labels() []string {
	out := make([]string, len(l))
	for i, o := range l {
		if o.Label != "" {
			out[i] = o.Label
		} else {
			out[i] = o.ID
		}
	}
	return out
}

// IndexOf returns the position of id, or -1.
func (l List) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, o := range l {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether id is in the list.
func (l List) Contains(id string) bool {
	return l.IndexOf(id) >= 0
}

// IDs returns the option ids.
func (l List) IDs() []string {
	out := make([]string, len(l))
	for i, o := range l {
		out[i] = o.ID
	}
	return out
}

const (
	GenderMale   = "PRIA"
	GenderFemale = "WANITA"
)

// Genders returns the gender select options. Labels are supplied by the
// caller so they can be localized.
func Genders(male, female string) List {
	return List{
		{ID: GenderMale, Label: male},
		{ID: GenderFemale, Label: female},
	}
}
