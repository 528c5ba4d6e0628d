package annotation

import "sort"

// Vocabulary maps label names to mask channels. Names are deduplicated and
// sorted, and channel i belongs to the i-th name, so two vocabularies built
// from the same set of labels always agree. A Vocabulary is never modified
// after construction.
type Vocabulary struct {
	names []string
}

// NewVocabulary builds the vocabulary for labels. Order and duplicates in
// labels do not matter.
func NewVocabulary(labels []string) *Vocabulary {
	names := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		names = append(names, l)
	}
	sort.Strings(names)
	return &Vocabulary{names: names}
}

// Len returns the number of channels.
func (v *Vocabulary) Len() int { return len(v.names) }

// Index returns the channel for name.
func (v *Vocabulary) Index(name string) (int, bool) {
	i := sort.SearchStrings(v.names, name)
	if i < len(v.names) && v.names[i] == name {
		return i, true
	}
	return -1, false
}

// Name returns the label of channel i.
func (v *Vocabulary) Name(i int) string { return v.names[i] }

// Names returns the labels in channel order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

// Equal reports whether both vocabularies assign the same channels.
func (v *Vocabulary) Equal(o *Vocabulary) bool {
	if len(v.names) != len(o.names) {
		return false
	}
	for i := range v.names {
		if v.names[i] != o.names[i] {
			return false
		}
	}
	return true
}
