package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youssefsiam38/agentctx/memory"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func raw(session string, start, end int, content string) *memory.Observation {
	return &memory.Observation{
		ID:                uuid.NewString(),
		SessionKey:        session,
		Content:           content,
		CreatedAt:         time.Now(),
		MessageStartIndex: start,
		MessageEndIndex:   end,
		TokenEstimate:     len(content),
		Origin:            memory.RawOrigin{},
		Priority:          memory.PriorityMedium,
	}
}

func reflected(session string, depth, start, end int, content string) *memory.Observation {
	obs := raw(session, start, end, content)
	obs.Origin = memory.ReflectedOrigin{Depth: depth}
	return obs
}

func contents(rows []*memory.Observation) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Content
	}
	return out
}

func TestSQLStore_HighWaterMark(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mark, err := s.HighWaterMark(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, mark)

	require.NoError(t, s.Insert(ctx, raw("s1", 0, 12, "a"), raw("s1", 0, 12, "b")))

	mark, err = s.HighWaterMark(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 12, mark)

	require.NoError(t, s.Insert(ctx, raw("s1", 12, 20, "c")))

	mark, err = s.HighWaterMark(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 20, mark)

	other, err := s.HighWaterMark(ctx, "s2")
	require.NoError(t, err)
	assert.Zero(t, other, "marks are scoped per session")
}

func TestSQLStore_InsertRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Insert(ctx, raw("s1", 0, 10, "first")))

	err := s.Insert(ctx, raw("s1", 5, 15, "overlapping"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, memory.ErrRangeOverlap))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "Insert", storeErr.Op)
	assert.Equal(t, "s1", storeErr.SessionKey)

	// A bad row later in a batch rolls back the whole batch.
	err = s.Insert(ctx, raw("s1", 10, 20, "ok"), raw("s1", 15, 25, "bad"))
	require.ErrorIs(t, err, memory.ErrRangeOverlap)

	rows, err := s.List(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, contents(rows))
}

func TestSQLStore_InsertValidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name   string
		mutate func(*memory.Observation)
	}{
		{name: "empty range", mutate: func(o *memory.Observation) { o.MessageEndIndex = o.MessageStartIndex }},
		{name: "reversed range", mutate: func(o *memory.Observation) { o.MessageStartIndex = 9; o.MessageEndIndex = 3 }},
		{name: "missing origin", mutate: func(o *memory.Observation) { o.Origin = nil }},
		{name: "bad priority", mutate: func(o *memory.Observation) { o.Priority = 7 }},
		{name: "missing session", mutate: func(o *memory.Observation) { o.SessionKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := raw("s1", 0, 5, "x")
			tt.mutate(row)

			err := s.Insert(ctx, row)
			assert.ErrorIs(t, err, memory.ErrInvalidObservation)
		})
	}
}

func TestSQLStore_ListOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now()
	older := raw("s1", 0, 5, "older")
	older.CreatedAt = base
	newer := raw("s1", 5, 9, "newer")
	newer.CreatedAt = base.Add(time.Second)
	deep := reflected("s1", 1, 0, 3, "deep")
	deep.CreatedAt = base.Add(-time.Hour)

	require.NoError(t, s.Insert(ctx, older))
	require.NoError(t, s.Insert(ctx, newer))
	require.NoError(t, s.Insert(ctx, deep))
	require.NoError(t, s.Insert(ctx, raw("other", 0, 100, "foreign")))

	rows, err := s.List(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older", "deep"}, contents(rows))

	gen0, err := s.List(ctx, "s1", memory.Generation(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, contents(gen0))

	gen1, err := s.List(ctx, "s1", memory.Generation(1))
	require.NoError(t, err)
	require.Len(t, gen1, 1)
	assert.Equal(t, memory.ReflectedOrigin{Depth: 1}, gen1[0].Origin)
	assert.Equal(t, deep.CreatedAt.UnixNano(), gen1[0].CreatedAt.UnixNano())
}

func TestSQLStore_BatchKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	batch := make([]*memory.Observation, 5)
	for i := range batch {
		batch[i] = raw("s1", 0, 8, fmt.Sprintf("obs-%d", i))
		batch[i].CreatedAt = now
	}
	require.NoError(t, s.Insert(ctx, batch...))

	rows, err := s.List(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"obs-0", "obs-1", "obs-2", "obs-3", "obs-4"}, contents(rows))
}

func TestSQLStore_TokenSum(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Insert(ctx, raw("s1", 0, 5, "aaaa"), raw("s1", 0, 5, "bb")))
	require.NoError(t, s.Insert(ctx, reflected("s1", 1, 0, 2, "cccccccc")))

	all, err := s.TokenSum(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 14, all)

	gen0, err := s.TokenSum(ctx, "s1", memory.Generation(0))
	require.NoError(t, err)
	assert.Equal(t, 6, gen0)

	empty, err := s.TokenSum(ctx, "nobody", nil)
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestSQLStore_ReplaceGeneration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Insert(ctx, raw("s1", 0, 10, "a"), raw("s1", 0, 10, "b")))
	require.NoError(t, s.Insert(ctx, raw("s1", 10, 30, "c")))

	require.NoError(t, s.ReplaceGeneration(ctx, "s1", 0, []*memory.Observation{
		reflected("s1", 1, 0, 30, "abc"),
	}))

	gen0, err := s.List(ctx, "s1", memory.Generation(0))
	require.NoError(t, err)
	assert.Empty(t, gen0)

	gen1, err := s.List(ctx, "s1", memory.Generation(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, contents(gen1))

	mark, err := s.HighWaterMark(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 30, mark, "reflection keeps the high-water mark")

	// The next raw batch still has to start at the mark.
	assert.ErrorIs(t, s.Insert(ctx, raw("s1", 20, 40, "late")), memory.ErrRangeOverlap)
	assert.NoError(t, s.Insert(ctx, raw("s1", 30, 40, "next")))
}

func TestSQLStore_ReplaceGenerationRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Insert(ctx, raw("s1", 0, 10, "a"), raw("s1", 0, 10, "b")))

	// The duplicate primary key fails the second insert after the delete ran.
	dup := reflected("s1", 1, 0, 10, "first")
	clash := reflected("s1", 1, 0, 10, "second")
	clash.ID = dup.ID

	err := s.ReplaceGeneration(ctx, "s1", 0, []*memory.Observation{dup, clash})
	require.Error(t, err)

	gen0, err := s.List(ctx, "s1", memory.Generation(0))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, contents(gen0))

	gen1, err := s.List(ctx, "s1", memory.Generation(1))
	require.NoError(t, err)
	assert.Empty(t, gen1)
}

func TestSQLStore_ReplaceGenerationValidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Insert(ctx, raw("s1", 0, 10, "a")))

	tests := []struct {
		name string
		rows []*memory.Observation
	}{
		{name: "same generation", rows: []*memory.Observation{raw("s1", 0, 10, "x")}},
		{name: "foreign session", rows: []*memory.Observation{reflected("s2", 1, 0, 10, "x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ReplaceGeneration(ctx, "s1", 0, tt.rows)
			require.ErrorIs(t, err, memory.ErrInvalidObservation)

			gen0, err := s.List(ctx, "s1", memory.Generation(0))
			require.NoError(t, err)
			assert.Len(t, gen0, 1)
		})
	}
}

func TestSQLStore_DeleteSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Insert(ctx, raw("s1", 0, 10, "a")))
	require.NoError(t, s.Insert(ctx, raw("s2", 0, 10, "b")))

	require.NoError(t, s.DeleteSession(ctx, "s1"))

	rows, err := s.List(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.List(ctx, "s2", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSQLStore_CallerTransaction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tx, err := s.DB().BeginTx(ctx, nil)
	require.NoError(t, err)

	txCtx := WithTx(ctx, tx)
	require.NoError(t, s.Insert(txCtx, raw("s1", 0, 10, "a")))

	mark, err := s.HighWaterMark(txCtx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10, mark)

	require.NoError(t, tx.Rollback())

	mark, err = s.HighWaterMark(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, mark, "rolled back with the caller's transaction")
}

func TestSQLStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "observations.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, raw("s1", 0, 7, "durable")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	mark, err := reopened.HighWaterMark(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, mark)
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ?",
		DialectSQLite.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2",
		DialectPostgres.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	for driver, want := range map[string]Dialect{"sqlite3": DialectSQLite, "pgx": DialectPostgres, "postgres": DialectPostgres} {
		got, err := DialectForDriver(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := DialectForDriver("mysql")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
