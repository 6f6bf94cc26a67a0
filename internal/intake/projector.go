package intake

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"dental-intake-bot/internal/catalog"
)

// Leading columns that precede the catalog columns in every row.
const (
	ColumnSequence = iota
	ColumnRecordID
	ColumnDate
	ColumnTime
	leadingColumns
)

const (
	dateLayout = "02/01/2006"
	timeLayout = "15:04:05"
)

// Counters are the last sequence and record numbers already persisted.
type Counters struct {
	LastSequence int64
	LastRecordID int64
}

// Annotation asks the sink to enrich a written cell with an image. Row is
// relative to the projection's first row.
type Annotation struct {
	Row    int
	Column int
	URL    string
}

// Projection is a submission flattened into aligned rows.
type Projection struct {
	SubmissionID  uuid.UUID
	RecordID      int64
	FirstSequence int64
	Operator      string
	CapturedAt    time.Time
	Rows          [][]string
	Annotations   []Annotation
}

// Receipt describes where a submission landed.
type Receipt struct {
	RecordID int64
	Rows     int
	Location string
}

// Sink persists projections. RecoverCounters runs once at startup.
type Sink interface {
	RecoverCounters(ctx context.Context) (Counters, error)
	AppendSubmission(ctx context.Context, p *Projection) (Receipt, error)
}

// Header returns the column titles in persisted order.
func Header() []string {
	h := []string{"No", "ID Rekam", "Tanggal", "Jam"}
	for _, g := range []catalog.Group{catalog.GroupPatient, catalog.GroupTooth, catalog.GroupExamination} {
		for _, f := range catalog.Fields(g) {
			h = append(h, f.Label)
		}
	}
	return h
}

// Projector numbers and flattens submissions. Counters start from what the
// sink recovered and advance in memory only.
type Projector struct {
	mu       sync.Mutex
	sequence int64
	record   int64
	loc      *time.Location
	now      func() time.Time
}

func NewProjector(c Counters, loc *time.Location) *Projector {
	if loc == nil {
		loc = time.Local
	}
	return &Projector{
		sequence: c.LastSequence,
		record:   c.LastRecordID,
		loc:      loc,
		now:      time.Now,
	}
}

// Counters reports the last numbers handed out.
func (p *Projector) Counters() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Counters{LastSequence: p.sequence, LastRecordID: p.record}
}

// reserve hands out a record id and a block of n sequence numbers. Numbers
// are not returned on a failed save.
func (p *Projector) reserve(n int) (record, first int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record++
	first = p.sequence + 1
	p.sequence += int64(n)
	return p.record, first
}

// Project emits one row per completed tooth. A session without teeth yields
// no rows and consumes no numbers. Operator follows the persisted Dokter
// Pemeriksa column, whether it was prefilled, typed or edited.
func (p *Projector) Project(s *Session) *Projection {
	captured := p.now().In(p.loc)
	proj := &Projection{
		SubmissionID: uuid.New(),
		Operator:     s.Patient[catalog.FieldOperator],
		CapturedAt:   captured,
	}
	if len(s.Teeth) == 0 {
		return proj
	}
	proj.RecordID, proj.FirstSequence = p.reserve(len(s.Teeth))

	patient := catalog.Fields(catalog.GroupPatient)
	tooth := catalog.Fields(catalog.GroupTooth)
	exam := catalog.Fields(catalog.GroupExamination)

	for i, t := range s.Teeth {
		row := make([]string, 0, leadingColumns+catalog.Width())
		row = append(row,
			strconv.FormatInt(proj.FirstSequence+int64(i), 10),
			strconv.FormatInt(proj.RecordID, 10),
			captured.Format(dateLayout),
			captured.Format(timeLayout),
		)
		row = appendGroup(row, patient, s.Patient)
		toothStart := len(row)
		row = appendGroup(row, tooth, t)
		examStart := len(row)
		row = appendGroup(row, exam, s.Examination)

		proj.Annotations = append(proj.Annotations, annotate(i, toothStart, tooth, t)...)
		proj.Annotations = append(proj.Annotations, annotate(i, examStart, exam, s.Examination)...)
		proj.Rows = append(proj.Rows, row)
	}
	return proj
}

// appendGroup keeps columns aligned: absent values become "".
func appendGroup(row []string, fields []catalog.Field, values Record) []string {
	for _, f := range fields {
		row = append(row, values[f.Key])
	}
	return row
}

func annotate(row, offset int, fields []catalog.Field, values Record) []Annotation {
	var out []Annotation
	for i, f := range fields {
		if !f.IsChoice() {
			continue
		}
		o, ok := catalog.OptionByLabel(f.Key, values[f.Key])
		if !ok || o.ImageURL == "" {
			continue
		}
		out = append(out, Annotation{Row: row, Column: offset + i, URL: o.ImageURL})
	}
	return out
}
