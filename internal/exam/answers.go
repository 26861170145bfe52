package exam

// Saved answers reach grading in one of two legacy layouts:
//
//	(a) one flat object keyed by section-type name, each value a
//	    questionID -> answer map, plus a reserved "_meta" bookkeeping key
//	    written by older clients (timer state, current page); and
//	(b) per-section records keyed by section id, each wrapping its own
//	    "answers" map.
//
// Both collapse into an AnswerSet here, so the scorers only ever see one
// shape.

const metaKey = "_meta"

// AnswerSet is the normalized view of an attempt's saved answers.
type AnswerSet struct {
	buckets map[string]map[string]interface{} // section id or type -> qid -> answer
}

// ForSection returns the answer map for one section, preferring a bucket
// saved under the section's id over one saved under its type name. Never
// nil.
func (s AnswerSet) ForSection(sec Section) map[string]interface{} {
	if m, ok := s.buckets[sec.ID]; ok {
		return m
	}
	if m, ok := s.buckets[sec.Type]; ok {
		return m
	}
	return map[string]interface{}{}
}

// NormalizeAnswers reconciles either legacy layout into an AnswerSet.
// Unrecognized values are dropped rather than failing the whole attempt.
func NormalizeAnswers(raw map[string]interface{}) AnswerSet {
	set := AnswerSet{buckets: map[string]map[string]interface{}{}}
	for key, v := range raw {
		if key == metaKey {
			continue
		}
		bucket, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		if rec, ok := bucket["answers"].(map[string]interface{}); ok {
			// record shape: {"answers": {...}, "section_id": "..."}
			id := key
			if sid, ok := bucket["section_id"].(string); ok && sid != "" {
				id = sid
			}
			set.buckets[id] = rec
			continue
		}
		set.buckets[key] = bucket
	}
	return set
}
