package intake

import (
	"time"

	"dental-intake-bot/internal/catalog"
)

// Identity is the opaque per-user key all session state hangs off.
type Identity string

// State is the lifecycle position of a session.
type State string

const (
	StateAwaitingOperator State = "awaiting_operator_name"
	StatePatient          State = "collecting_patient"
	StateTooth            State = "collecting_subrecord"
	StateExamination      State = "collecting_examination"
	StateConfirming       State = "confirming"
	StateEditing          State = "editing"
)

// Record maps field keys of one group to the collected values.
type Record map[string]string

func (r Record) clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// EditTarget addresses the value being edited. An empty Group means the
// operator is still choosing from the edit menu; a tooth target with an
// empty Field means a tooth was picked but not yet one of its fields.
type EditTarget struct {
	Group catalog.Group
	Index int
	Field string
}

func (t EditTarget) Resolved() bool { return t.Group != "" && t.Field != "" }

// Session is one in-progress submission.
type Session struct {
	Identity     Identity
	State        State
	OperatorName string

	Patient       Record
	PatientCursor int

	Teeth        []Record
	CurrentTooth Record
	ToothCursor  int

	Examination       Record
	ExaminationCursor int

	Edit *EditTarget

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession builds a fresh session. A known operator name is carried into
// the operator-prefilled patient field.
func NewSession(id Identity, operatorName string, now time.Time) *Session {
	s := &Session{
		Identity:     id,
		State:        StateAwaitingOperator,
		OperatorName: operatorName,
		Patient:      Record{},
		CurrentTooth: Record{},
		Examination:  Record{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if operatorName != "" {
		s.setOperator(operatorName)
	}
	return s
}

func (s *Session) setOperator(name string) {
	s.OperatorName = name
	for _, f := range catalog.Fields(catalog.GroupPatient) {
		if f.Prefill == catalog.PrefillOperator {
			s.Patient[f.Key] = name
		}
	}
}

// Clone returns a deep copy so handlers can work on a scratch session and
// commit only when a turn succeeds.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Patient = s.Patient.clone()
	c.CurrentTooth = s.CurrentTooth.clone()
	c.Examination = s.Examination.clone()
	if s.Teeth != nil {
		c.Teeth = make([]Record, len(s.Teeth))
		for i, t := range s.Teeth {
			c.Teeth[i] = t.clone()
		}
	}
	if s.Edit != nil {
		e := *s.Edit
		c.Edit = &e
	}
	return &c
}

// record returns the value map a group writes into. For the tooth group the
// index selects a completed tooth; -1 selects the tooth in progress.
func (s *Session) record(g catalog.Group, index int) Record {
	switch g {
	case catalog.GroupPatient:
		return s.Patient
	case catalog.GroupExamination:
		return s.Examination
	case catalog.GroupTooth:
		if index < 0 {
			return s.CurrentTooth
		}
		if index < len(s.Teeth) {
			return s.Teeth[index]
		}
	}
	return nil
}
