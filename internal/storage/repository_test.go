package storage_test

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/holiday-aggregator/internal/holiday"
	"github.com/neexbeast/holiday-aggregator/internal/storage"
)

// ---- mock Querier ----

type mockQuerier struct {
	queryFn func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFn  func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.queryFn(ctx, sql, args...)
}
func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.execFn(ctx, sql, args...)
}
func (m *mockQuerier) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.beginFn(ctx)
}

// txQuerier hands out tx for every Begin and fails direct Exec calls, so
// writes outside the transaction show up as test failures.
func txQuerier(t *testing.T, tx *mockTx) *mockQuerier {
	return &mockQuerier{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			t.Fatal("archive writes must go through the transaction")
			return pgconn.CommandTag{}, nil
		},
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}
}

// ---- mock pgx.Rows ----

type fakeRows struct {
	rows    [][]any
	idx     int
	rowErr  error
	scanErr error
	closed  bool
}

func (f *fakeRows) Next() bool                                   { f.idx++; return f.idx <= len(f.rows) }
func (f *fakeRows) Err() error                                   { return f.rowErr }
func (f *fakeRows) Close()                                       { f.closed = true }
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	row := f.rows[f.idx-1]
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		switch v := d.(type) {
		case *int:
			*v = row[i].(int)
		case *string:
			*v = row[i].(string)
		case *bool:
			*v = row[i].(bool)
		case *uuid.UUID:
			*v = row[i].(uuid.UUID)
		case *time.Time:
			*v = row[i].(time.Time)
		}
	}
	return nil
}

// ---- mock MigrationPool ----

type mockMigrationPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockMigrationPool) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.beginFn(ctx)
}

// mockTx is a minimal pgx.Tx for migrations and archive upserts.
type mockTx struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
}

func (t *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.execFn(ctx, sql, args...)
}
func (t *mockTx) Commit(ctx context.Context) error   { return t.commitFn(ctx) }
func (t *mockTx) Rollback(ctx context.Context) error { return t.rollbackFn(ctx) }

// Remaining pgx.Tx methods are unused.
func (t *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (t *mockTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *mockTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *mockTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *mockTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *mockTx) Conn() *pgx.Conn { return nil }

func okTx(exec func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)) *mockTx {
	return &mockTx{
		execFn:     exec,
		commitFn:   func(_ context.Context) error { return nil },
		rollbackFn: func(_ context.Context) error { return nil },
	}
}

// ---- helpers ----

func sampleHolidays() []holiday.Holiday {
	return []holiday.Holiday{
		{Name: "New Year's Day", LocalName: "New Year's Day", Date: "2024-01-01", Country: "United States",
			CountryCode: "US", Type: holiday.TypePublic, Global: true},
		{Name: "Independence Day", LocalName: "Independence Day", Date: "2024-07-04", Country: "United States",
			CountryCode: "US", Type: holiday.TypePublic, Global: true},
	}
}

// ---- UpsertHolidays tests ----

func TestUpsertHolidays_Success(t *testing.T) {
	var calls [][]any
	tx := okTx(func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		assert.Contains(t, sql, "ON CONFLICT (name, date, country_code)")
		calls = append(calls, args)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	})
	committed := false
	tx.commitFn = func(_ context.Context) error { committed = true; return nil }

	repo := storage.NewRepositoryWithQuerier(txQuerier(t, tx))
	res, err := repo.UpsertHolidays(context.Background(), "Nager.Date", sampleHolidays())
	require.NoError(t, err)
	assert.True(t, committed)

	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, "Nager.Date", res.Provider)
	assert.NotEqual(t, uuid.Nil, res.SyncID)

	require.Len(t, calls, 2)
	assert.Equal(t, "New Year's Day", calls[0][0])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), calls[0][2])
	assert.Equal(t, "public", calls[0][5])
	assert.Equal(t, "Nager.Date", calls[0][8])
	assert.Equal(t, res.SyncID, calls[0][9], "every row carries the batch sync id")
	assert.Equal(t, res.SyncID, calls[1][9])
}

func TestUpsertHolidays_Empty(t *testing.T) {
	q := &mockQuerier{
		beginFn: func(_ context.Context) (pgx.Tx, error) {
			t.Fatal("no transaction should be opened")
			return nil, nil
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	res, err := repo.UpsertHolidays(context.Background(), "Calendarific", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stored)
}

func TestUpsertHolidays_DBErrorRollsBack(t *testing.T) {
	n := 0
	tx := okTx(func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
		n++
		if n == 2 {
			return pgconn.CommandTag{}, fmt.Errorf("connection reset")
		}
		return pgconn.CommandTag{}, nil
	})
	var committed, rolledBack bool
	tx.commitFn = func(_ context.Context) error { committed = true; return nil }
	tx.rollbackFn = func(_ context.Context) error { rolledBack = true; return nil }

	repo := storage.NewRepositoryWithQuerier(txQuerier(t, tx))
	res, err := repo.UpsertHolidays(context.Background(), "Nager.Date", sampleHolidays())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upserting holiday")
	assert.True(t, rolledBack)
	assert.False(t, committed)
	assert.Zero(t, res.Stored, "a failed batch keeps no rows")
}

func TestUpsertHolidays_BeginError(t *testing.T) {
	q := &mockQuerier{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return nil, fmt.Errorf("pool closed") },
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.UpsertHolidays(context.Background(), "Nager.Date", sampleHolidays())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beginning transaction")
}

func TestUpsertHolidays_CommitError(t *testing.T) {
	tx := okTx(func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, nil
	})
	tx.commitFn = func(_ context.Context) error { return fmt.Errorf("serialization failure") }

	repo := storage.NewRepositoryWithQuerier(txQuerier(t, tx))
	res, err := repo.UpsertHolidays(context.Background(), "Nager.Date", sampleHolidays())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "committing transaction")
	assert.Zero(t, res.Stored)
}

func TestUpsertHolidays_BadDate(t *testing.T) {
	q := &mockQuerier{
		beginFn: func(_ context.Context) (pgx.Tx, error) {
			t.Fatal("invalid input must fail before a transaction is opened")
			return nil, nil
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.UpsertHolidays(context.Background(), "Nager.Date", []holiday.Holiday{{Name: "Broken", Date: "01/01/2024"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing date")
}

// ---- ListHolidays tests ----

func TestListHolidays_Found(t *testing.T) {
	syncID := uuid.New()
	syncedAt := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	rows := &fakeRows{
		rows: [][]any{
			{1, "New Year's Day", "New Year's Day", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "United States", "US",
				"public", "", true, "Nager.Date", syncID, syncedAt},
			{2, "Independence Day", "Independence Day", time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), "United States", "US",
				"public", "", true, "Nager.Date", syncID, syncedAt},
		},
	}

	var gotArgs []any
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotArgs = args
			return rows, nil
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	got, err := repo.ListHolidays(context.Background(), "US", 2024)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "2024-01-01", got[0].Holiday.Date)
	assert.Equal(t, holiday.TypePublic, got[0].Holiday.Type)
	assert.Equal(t, "db_US_2024-01-01_1", got[0].Holiday.ID)
	assert.True(t, got[1].Holiday.Global)
	assert.Equal(t, syncID, got[1].SyncID)
	assert.Equal(t, syncedAt, got[1].SyncedAt)

	require.Len(t, gotArgs, 3)
	assert.Equal(t, "US", gotArgs[0])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), gotArgs[1])
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), gotArgs[2])
	assert.True(t, rows.closed)
}

func TestListHolidays_Empty(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return &fakeRows{}, nil },
	}

	repo := storage.NewRepositoryWithQuerier(q)
	got, err := repo.ListHolidays(context.Background(), "ZZ", 2024)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListHolidays_QueryError(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return nil, fmt.Errorf("db down")
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.ListHolidays(context.Background(), "US", 2024)
	require.Error(t, err)
}

func TestListHolidays_ScanError(t *testing.T) {
	rows := &fakeRows{
		rows:    [][]any{{1}},
		scanErr: fmt.Errorf("scan failure"),
	}

	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return rows, nil },
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.ListHolidays(context.Background(), "US", 2024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning")
}

func TestListHolidays_RowsErr(t *testing.T) {
	rows := &fakeRows{rowErr: fmt.Errorf("rows iteration error")}

	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return rows, nil },
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.ListHolidays(context.Background(), "US", 2024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterating")
}

// ---- NewRepository ----

func TestNewRepository_NotNil(t *testing.T) {
	repo := storage.NewRepository(nil)
	assert.NotNil(t, repo)
}

// ---- RunMigrations tests ----

func TestRunMigrations_EmptyFS(t *testing.T) {
	applied, err := storage.RunMigrations(context.Background(), nil, fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestRunMigrations_Success(t *testing.T) {
	migrations := fstest.MapFS{
		"001_test.sql": {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("not a migration")},
	}

	tx := okTx(func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, nil
	})
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}

	applied, err := storage.RunMigrations(context.Background(), pool, migrations)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_test.sql"}, applied)
}

func TestRunMigrations_BeginError(t *testing.T) {
	migrations := fstest.MapFS{"001_test.sql": {Data: []byte("SELECT 1;")}}

	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return nil, fmt.Errorf("cannot begin") },
	}

	_, err := storage.RunMigrations(context.Background(), pool, migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing migration")
}

func TestRunMigrations_ExecErrorRollsBack(t *testing.T) {
	migrations := fstest.MapFS{"001_test.sql": {Data: []byte("INVALID SQL;")}}

	rolledBack := false
	tx := &mockTx{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, fmt.Errorf("syntax error")
		},
		commitFn:   func(_ context.Context) error { return nil },
		rollbackFn: func(_ context.Context) error { rolledBack = true; return nil },
	}
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}

	applied, err := storage.RunMigrations(context.Background(), pool, migrations)
	require.Error(t, err)
	assert.Empty(t, applied)
	assert.True(t, rolledBack)
}

func TestRunMigrations_CommitError(t *testing.T) {
	migrations := fstest.MapFS{"001_test.sql": {Data: []byte("SELECT 1;")}}

	tx := &mockTx{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, nil
		},
		commitFn:   func(_ context.Context) error { return fmt.Errorf("commit failed") },
		rollbackFn: func(_ context.Context) error { return nil },
	}
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}

	_, err := storage.RunMigrations(context.Background(), pool, migrations)
	require.Error(t, err)
}

func TestRunMigrations_SortsFilesLexicographically(t *testing.T) {
	migrations := fstest.MapFS{
		"003_c.sql": {Data: []byte("SELECT 3;")},
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"002_b.sql": {Data: []byte("SELECT 2;")},
	}

	var order []string
	tx := okTx(func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		order = append(order, sql)
		return pgconn.CommandTag{}, nil
	})
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}

	applied, err := storage.RunMigrations(context.Background(), pool, migrations)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1;", "SELECT 2;", "SELECT 3;"}, order)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql", "003_c.sql"}, applied)
}

func TestRunMigrations_StopsAtFirstFailure(t *testing.T) {
	migrations := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"002_b.sql": {Data: []byte("BROKEN;")},
		"003_c.sql": {Data: []byte("SELECT 3;")},
	}

	tx := okTx(func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		if sql == "BROKEN;" {
			return pgconn.CommandTag{}, fmt.Errorf("syntax error")
		}
		return pgconn.CommandTag{}, nil
	})
	pool := &mockMigrationPool{
		beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil },
	}

	applied, err := storage.RunMigrations(context.Background(), pool, migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_b.sql")
	assert.Equal(t, []string{"001_a.sql"}, applied)
}

// ---- Connect tests ----

func TestConnect_BadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := storage.Connect(ctx, "postgres://invalid-host-xyz:5432/db?sslmode=disable")
	require.Error(t, err)
}
