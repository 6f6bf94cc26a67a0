package intake

import "dental-intake-bot/internal/catalog"

// nextApplicable returns the index of the first field at or after from that
// has to be prompted. Fields passed over are settled in values: prefilled
// ones keep their value, inapplicable conditional ones get the
// not-applicable sentinel. ok is false once the group is exhausted.
func nextApplicable(g catalog.Group, values Record, from int) (idx int, ok bool) {
	fields := catalog.Fields(g)
	for i := from; i < len(fields); i++ {
		f := fields[i]
		if f.Prefill != catalog.PrefillNone && values[f.Key] != "" {
			continue
		}
		if !catalog.Applicable(g, f.Key, values) {
			values[f.Key] = catalog.NotApplicable
			continue
		}
		return i, true
	}
	return len(fields), false
}

// cursorField returns the field under a group's cursor, if any.
func cursorField(g catalog.Group, cursor int) (catalog.Field, bool) {
	fields := catalog.Fields(g)
	if cursor < 0 || cursor >= len(fields) {
		return catalog.Field{}, false
	}
	return fields[cursor], true
}

// active returns the group, values and cursor the session is collecting
// into, or ok=false outside the collecting states.
func (s *Session) active() (g catalog.Group, values Record, cursor *int, ok bool) {
	switch s.State {
	case StatePatient:
		return catalog.GroupPatient, s.Patient, &s.PatientCursor, true
	case StateTooth:
		return catalog.GroupTooth, s.CurrentTooth, &s.ToothCursor, true
	case StateExamination:
		return catalog.GroupExamination, s.Examination, &s.ExaminationCursor, true
	}
	return "", nil, nil, false
}

// settle moves the active cursor onto the next field that needs a prompt.
func (s *Session) settle(from int) bool {
	g, values, cursor, ok := s.active()
	if !ok {
		return false
	}
	next, more := nextApplicable(g, values, from)
	*cursor = next
	return more
}

// enter switches to a collecting state with its cursor at the first field
// that needs a prompt. It reports whether such a field exists.
func (s *Session) enter(st State) bool {
	s.State = st
	s.Edit = nil
	switch st {
	case StateTooth:
		s.CurrentTooth = Record{}
	case StateExamination:
		s.CurrentTooth = Record{}
		s.ToothCursor = 0
	}
	return s.settle(0)
}

// fill stores value under the active cursor and advances it.
func (s *Session) fill(value string) (more bool) {
	g, values, cursor, ok := s.active()
	if !ok {
		return false
	}
	f, ok := cursorField(g, *cursor)
	if !ok {
		return false
	}
	values[f.Key] = value
	return s.settle(*cursor + 1)
}

// commitTooth moves the tooth in progress into the completed list.
func (s *Session) commitTooth() {
	if len(s.CurrentTooth) > 0 {
		s.Teeth = append(s.Teeth, s.CurrentTooth)
	}
	s.CurrentTooth = Record{}
	s.ToothCursor = 0
}
