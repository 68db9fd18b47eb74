// Package servicetest provides a scripted stand-in for the database pool so
// the SQL-bound service paths can run in tests without a live Postgres. Each
// expectation consumes exactly one statement, matched in order by substring,
// and every statement the code runs is recorded for assertions.
package servicetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stepKind int

const (
	stepQuery stepKind = iota
	stepQueryRow
	stepExec
	stepBegin
	stepCommit
	stepRollback
)

func (k stepKind) String() string {
	switch k {
	case stepQuery:
		return "Query"
	case stepQueryRow:
		return "QueryRow"
	case stepExec:
		return "Exec"
	case stepBegin:
		return "Begin"
	case stepCommit:
		return "Commit"
	case stepRollback:
		return "Rollback"
	}
	return "unknown"
}

type step struct {
	kind   stepKind
	match  string
	rows   [][]any
	rowErr error
}

// Call is one statement the code under test ran
type Call struct {
	SQL  string
	Args []any
}

// FakeDB satisfies database.Querier with a scripted sequence of results
type FakeDB struct {
	t     *testing.T
	steps []step
	pos   int
	calls []Call
}

// New creates an empty script bound to the test
func New(t *testing.T) *FakeDB {
	return &FakeDB{t: t}
}

// ExpectQuery scripts a multi-row result for the next Query whose SQL
// contains match
func (f *FakeDB) ExpectQuery(match string, rows ...[]any) {
	f.steps = append(f.steps, step{kind: stepQuery, match: match, rows: rows})
}

// ExpectRow scripts a single-row result for the next QueryRow whose SQL
// contains match
func (f *FakeDB) ExpectRow(match string, values ...any) {
	f.steps = append(f.steps, step{kind: stepQueryRow, match: match, rows: [][]any{values}})
}

// ExpectNoRows scripts a QueryRow that finds nothing
func (f *FakeDB) ExpectNoRows(match string) {
	f.steps = append(f.steps, step{kind: stepQueryRow, match: match, rowErr: pgx.ErrNoRows})
}

// ExpectExec scripts a successful Exec whose SQL contains match
func (f *FakeDB) ExpectExec(match string) {
	f.steps = append(f.steps, step{kind: stepExec, match: match})
}

// ExpectBegin scripts the start of a transaction
func (f *FakeDB) ExpectBegin() {
	f.steps = append(f.steps, step{kind: stepBegin})
}

// ExpectCommit scripts a successful commit
func (f *FakeDB) ExpectCommit() {
	f.steps = append(f.steps, step{kind: stepCommit})
}

// ExpectRollback scripts an explicit rollback. A deferred rollback after a
// scripted commit needs no expectation.
func (f *FakeDB) ExpectRollback() {
	f.steps = append(f.steps, step{kind: stepRollback})
}

// AssertDone fails the test when scripted steps were left unconsumed
func (f *FakeDB) AssertDone() {
	f.t.Helper()
	if f.pos != len(f.steps) {
		f.t.Fatalf("only %d of %d scripted statements were run; next unconsumed: %s containing %q",
			f.pos, len(f.steps), f.steps[f.pos].kind, f.steps[f.pos].match)
	}
}

// Statements returns every recorded call whose SQL contains match
func (f *FakeDB) Statements(match string) []Call {
	var out []Call
	for _, c := range f.calls {
		if strings.Contains(c.SQL, match) {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeDB) next(kind stepKind, sql string) step {
	f.t.Helper()
	if f.pos >= len(f.steps) {
		f.t.Fatalf("unscripted %s: %s", kind, strings.TrimSpace(sql))
	}
	st := f.steps[f.pos]
	if st.kind != kind || !strings.Contains(sql, st.match) {
		f.t.Fatalf("step %d: scripted %s containing %q, got %s: %s",
			f.pos, st.kind, st.match, kind, strings.TrimSpace(sql))
	}
	f.pos++
	return st
}

func (f *FakeDB) record(sql string, args []any) {
	f.calls = append(f.calls, Call{SQL: sql, Args: args})
}

// Query satisfies database.Querier
func (f *FakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.t.Helper()
	f.record(sql, args)
	st := f.next(stepQuery, sql)
	return &fakeRows{rows: st.rows}, nil
}

// QueryRow satisfies database.Querier
func (f *FakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.t.Helper()
	f.record(sql, args)
	st := f.next(stepQueryRow, sql)
	if st.rowErr != nil {
		return &fakeRow{err: st.rowErr}
	}
	return &fakeRow{values: st.rows[0]}
}

// Exec satisfies database.Querier
func (f *FakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.t.Helper()
	f.record(sql, args)
	f.next(stepExec, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

// Begin satisfies database.Querier. The returned transaction shares the
// script, so statements inside it are expected in the same sequence.
func (f *FakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	f.t.Helper()
	f.next(stepBegin, "BEGIN")
	return &fakeTx{db: f}, nil
}

type fakeTx struct {
	db   *FakeDB
	done bool
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.db.t.Helper()
	tx.db.next(stepCommit, "COMMIT")
	tx.done = true
	return nil
}

// Rollback after Commit is the usual deferred cleanup and consumes nothing;
// a rollback on a live transaction must be scripted with ExpectRollback.
func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.t.Helper()
	tx.db.next(stepRollback, "ROLLBACK")
	return nil
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return tx.db.Query(ctx, sql, args...)
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return tx.db.QueryRow(ctx, sql, args...)
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return tx.db.Exec(ctx, sql, arguments...)
}

func (tx *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, fmt.Errorf("nested transactions are not scripted")
}

func (tx *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("CopyFrom is not scripted")
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("SendBatch is not scripted")
}

func (tx *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("Prepare is not scripted")
}

func (tx *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (tx *fakeTx) Conn() *pgx.Conn { return nil }

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.values)
}

func scanInto(dest, src []any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("scripted row has %d columns, scan wants %d", len(src), len(dest))
	}
	for i := range dest {
		if err := assign(dest[i], src[i]); err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, src any) error {
	switch d := dest.(type) {
	case *int64:
		switch v := src.(type) {
		case int64:
			*d = v
		case int:
			*d = int64(v)
		default:
			return typeError(dest, src)
		}
	case *int:
		switch v := src.(type) {
		case int:
			*d = v
		case int64:
			*d = int(v)
		default:
			return typeError(dest, src)
		}
	case *float64:
		switch v := src.(type) {
		case float64:
			*d = v
		case int:
			*d = float64(v)
		default:
			return typeError(dest, src)
		}
	case *string:
		v, ok := src.(string)
		if !ok {
			return typeError(dest, src)
		}
		*d = v
	case *bool:
		v, ok := src.(bool)
		if !ok {
			return typeError(dest, src)
		}
		*d = v
	case *time.Time:
		v, ok := src.(time.Time)
		if !ok {
			return typeError(dest, src)
		}
		*d = v
	case **time.Time:
		switch v := src.(type) {
		case nil:
			*d = nil
		case time.Time:
			t := v
			*d = &t
		case *time.Time:
			*d = v
		default:
			return typeError(dest, src)
		}
	case **string:
		switch v := src.(type) {
		case nil:
			*d = nil
		case string:
			s := v
			*d = &s
		case *string:
			*d = v
		default:
			return typeError(dest, src)
		}
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

func typeError(dest, src any) error {
	return fmt.Errorf("cannot scan %T into %T", src, dest)
}
