package bands

// DefaultIELTS is the published academic raw-to-band conversion for the
// two auto-scored sections, 40 questions each. Writing and speaking bands
// come from examiner rubrics, not this table.
func DefaultIELTS() []Entry {
	mk := func(section string, rows [][3]float64) []Entry {
		out := make([]Entry, 0, len(rows))
		for _, r := range rows {
			out = append(out, Entry{
				ExamType:    "ielts",
				SectionType: section,
				MinRaw:      r[0],
				MaxRaw:      r[1],
				Band:        r[2],
			})
		}
		return out
	}

	listening := mk("listening", [][3]float64{
		{39, 40, 9.0},
		{37, 38, 8.5},
		{35, 36, 8.0},
		{32, 34, 7.5},
		{30, 31, 7.0},
		{26, 29, 6.5},
		{23, 25, 6.0},
		{18, 22, 5.5},
		{16, 17, 5.0},
		{13, 15, 4.5},
		{10, 12, 4.0},
		{8, 9, 3.5},
		{6, 7, 3.0},
		{4, 5, 2.5},
		{2, 3, 2.0},
		{1, 1, 1.0},
		{0, 0, 0.0},
	})

	reading := mk("reading", [][3]float64{
		{39, 40, 9.0},
		{37, 38, 8.5},
		{35, 36, 8.0},
		{33, 34, 7.5},
		{30, 32, 7.0},
		{27, 29, 6.5},
		{23, 26, 6.0},
		{19, 22, 5.5},
		{15, 18, 5.0},
		{13, 14, 4.5},
		{10, 12, 4.0},
		{8, 9, 3.5},
		{6, 7, 3.0},
		{4, 5, 2.5},
		{3, 3, 2.0},
		{2, 2, 1.5},
		{1, 1, 1.0},
		{0, 0, 0.0},
	})

	return append(listening, reading...)
}
