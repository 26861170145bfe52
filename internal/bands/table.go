package bands

// Entry maps one raw-score range to a band for a given exam standard and
// section. Official conversion tables differ per standard and are supplied
// as reference data, never computed.
type Entry struct {
	ExamType    string  `json:"exam_type"`
	SectionType string  `json:"section_type"`
	MinRaw      float64 `json:"min_raw"`
	MaxRaw      float64 `json:"max_raw"`
	Band        float64 `json:"band"`
}

// Table is a read-only band conversion table, loaded before grading starts.
type Table struct {
	byScale map[string][]Entry // examType|sectionType -> ranges
}

func NewTable(entries []Entry) *Table {
	t := &Table{byScale: make(map[string][]Entry)}
	for _, e := range entries {
		k := scaleKey(e.ExamType, e.SectionType)
		t.byScale[k] = append(t.byScale[k], e)
	}
	return t
}

// Lookup resolves a raw score to its band by range containment
// (inclusive on both ends). ok is false when no configured range
// contains the score.
func (t *Table) Lookup(examType, sectionType string, raw float64) (float64, bool) {
	if t == nil {
		return 0, false
	}
	for _, e := range t.byScale[scaleKey(examType, sectionType)] {
		if raw >= e.MinRaw && raw <= e.MaxRaw {
			return e.Band, true
		}
	}
	return 0, false
}

// Entries returns the table rows for a given exam type, or all rows when
// examType is empty.
func (t *Table) Entries(examType string) []Entry {
	var out []Entry
	for _, es := range t.byScale {
		for _, e := range es {
			if examType == "" || e.ExamType == examType {
				out = append(out, e)
			}
		}
	}
	return out
}

func scaleKey(examType, sectionType string) string {
	return examType + "|" + sectionType
}
