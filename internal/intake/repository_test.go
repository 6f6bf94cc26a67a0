package intake

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeDB is an in-memory database/sql driver. Statements are grouped by the
// table they touch and only become visible in committed once their
// transaction commits.
type fakeDB struct {
	mu        sync.Mutex
	failOn    string
	counters  [2]int64
	attempts  map[string]int
	committed map[string][][]driver.Value
	rollbacks int
}

func newFakeDB() *fakeDB {
	return &fakeDB{attempts: map[string]int{}, committed: map[string][][]driver.Value{}}
}

func (f *fakeDB) open(t *testing.T) *sql.DB {
	t.Helper()
	db := sql.OpenDB(fakeConnector{f})
	t.Cleanup(func() { db.Close() })
	return db
}

func (f *fakeDB) rows(table string) [][]driver.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed[table]
}

type fakeConnector struct{ db *fakeDB }

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: c.db}, nil }
func (c fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return nil, errors.New("open through the connector") }

type statement struct {
	table string
	args  []driver.Value
}

type fakeConn struct {
	db      *fakeDB
	tx      bool
	pending []statement
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (c *fakeConn) Close() error                        { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.tx, c.pending = true, nil
	return fakeTx{c}, nil
}

func (c *fakeConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	table := "submission_rows"
	if strings.Contains(query, "submission_images") {
		table = "submission_images"
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.attempts[table]++
	if c.db.failOn == table {
		return nil, fmt.Errorf("%s: insert failed", table)
	}
	st := statement{table: table}
	for _, a := range args {
		st.args = append(st.args, a.Value)
	}
	if c.tx {
		c.pending = append(c.pending, st)
	} else {
		c.db.committed[table] = append(c.db.committed[table], st.args)
	}
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.failOn == "counters" {
		return nil, errors.New("relation does not exist")
	}
	return &counterRows{values: c.db.counters}, nil
}

type fakeTx struct{ c *fakeConn }

func (t fakeTx) Commit() error {
	t.c.db.mu.Lock()
	defer t.c.db.mu.Unlock()
	for _, st := range t.c.pending {
		t.c.db.committed[st.table] = append(t.c.db.committed[st.table], st.args)
	}
	t.c.tx, t.c.pending = false, nil
	return nil
}

func (t fakeTx) Rollback() error {
	t.c.db.mu.Lock()
	t.c.db.rollbacks++
	t.c.db.mu.Unlock()
	t.c.tx, t.c.pending = false, nil
	return nil
}

type counterRows struct {
	values [2]int64
	done   bool
}

func (r *counterRows) Columns() []string { return []string{"seq", "record_id"} }
func (r *counterRows) Close() error      { return nil }

func (r *counterRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0], dest[1] = r.values[0], r.values[1]
	return nil
}

func projectTeeth(n int) *Projection {
	p := NewProjector(Counters{LastSequence: 10, LastRecordID: 3}, time.UTC)
	return p.Project(sessionWithTeeth(n))
}

func TestPostgresAppendWritesRowsAndImages(t *testing.T) {
	fdb := newFakeDB()
	sink := NewPostgresSink(fdb.open(t), zerolog.Nop())
	proj := projectTeeth(2)

	rec, err := sink.AppendSubmission(context.Background(), proj)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.RecordID != 4 || rec.Rows != 2 || rec.Location != "submission_rows 11-12" {
		t.Fatalf("receipt = %+v", rec)
	}

	rows := fdb.rows("submission_rows")
	if len(rows) != 2 {
		t.Fatalf("committed %d rows", len(rows))
	}
	first := rows[0]
	if first[0] != int64(11) || first[1] != int64(4) || first[5] != "drg. Sari" {
		t.Errorf("first row args = %v", first)
	}
	if values, _ := first[6].(string); !strings.HasPrefix(values, "{") || !strings.Contains(values, "Budi") {
		t.Errorf("values array = %v", first[6])
	}

	images := fdb.rows("submission_images")
	if len(images) != len(proj.Annotations) || len(images) == 0 {
		t.Fatalf("committed %d images for %d annotations", len(images), len(proj.Annotations))
	}
	if images[0][0] != int64(11) || images[0][2] != proj.Annotations[0].URL {
		t.Errorf("first image args = %v", images[0])
	}
}

func TestPostgresAppendKeepsRowsWhenImagesFail(t *testing.T) {
	fdb := newFakeDB()
	fdb.failOn = "submission_images"
	var logs bytes.Buffer
	sink := NewPostgresSink(fdb.open(t), zerolog.New(&logs))
	proj := projectTeeth(1)
	if len(proj.Annotations) == 0 {
		t.Fatal("projection has no annotations to fail")
	}

	rec, err := sink.AppendSubmission(context.Background(), proj)
	if err != nil {
		t.Fatalf("image failure failed the save: %v", err)
	}
	if rec.Rows != 1 || rec.RecordID != proj.RecordID {
		t.Fatalf("receipt = %+v", rec)
	}
	if got := len(fdb.rows("submission_rows")); got != 1 {
		t.Fatalf("committed %d rows, want 1", got)
	}
	if fdb.attempts["submission_images"] == 0 {
		t.Fatal("images were never attempted")
	}
	if got := len(fdb.rows("submission_images")); got != 0 {
		t.Fatalf("committed %d images after a failure", got)
	}
	if !strings.Contains(logs.String(), "image annotations not stored") {
		t.Fatalf("failure not logged: %s", logs.String())
	}
}

func TestPostgresAppendRollsBackRows(t *testing.T) {
	fdb := newFakeDB()
	fdb.failOn = "submission_rows"
	sink := NewPostgresSink(fdb.open(t), zerolog.Nop())

	if _, err := sink.AppendSubmission(context.Background(), projectTeeth(2)); err == nil {
		t.Fatal("row failure reported success")
	}
	if len(fdb.rows("submission_rows")) != 0 || fdb.rollbacks == 0 {
		t.Fatalf("rows committed = %d, rollbacks = %d", len(fdb.rows("submission_rows")), fdb.rollbacks)
	}
	if fdb.attempts["submission_images"] != 0 {
		t.Fatal("images written for a failed save")
	}
}

func TestPostgresAppendWithoutRows(t *testing.T) {
	fdb := newFakeDB()
	sink := NewPostgresSink(fdb.open(t), zerolog.Nop())

	rec, err := sink.AppendSubmission(context.Background(), projectTeeth(0))
	if err != nil || rec.Rows != 0 {
		t.Fatalf("receipt = %+v, err = %v", rec, err)
	}
	if len(fdb.attempts) != 0 {
		t.Fatalf("statements run for an empty projection: %v", fdb.attempts)
	}
}

func TestPostgresRecoverCounters(t *testing.T) {
	fdb := newFakeDB()
	fdb.counters = [2]int64{57, 12}
	sink := NewPostgresSink(fdb.open(t), zerolog.Nop())

	c, err := sink.RecoverCounters(context.Background())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if c != (Counters{LastSequence: 57, LastRecordID: 12}) {
		t.Fatalf("counters = %+v", c)
	}

	fdb.failOn = "counters"
	if _, err := sink.RecoverCounters(context.Background()); err == nil {
		t.Fatal("query failure not reported")
	}
}
