package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(i int) *Run {
	obj := float64(100 + i)
	return &Run{
		ExperimentID: fmt.Sprintf("cpls_5/inst%d", i),
		Instance:     fmt.Sprintf("/jsp/toy/inst%d", i),
		Variant:      "JSP_OR_FSP",
		Status:       "FEASIBLE",
		Objective:    &obj,
		TimeLimit:    5,
		WallSeconds:  4.2,
		ResultPath:   fmt.Sprintf("results/cpls_5/inst%d/CP_results.json", i),
		Host:         "test-host",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

// exercise runs the same contract against every backend
func exercise(t *testing.T, s Store) {
	t.Helper()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordRun(sampleRun(i)))
	}
	unsolved := sampleRun(3)
	unsolved.Status = "INFEASIBLE"
	unsolved.Objective = nil
	require.NoError(t, s.RecordRun(unsolved))
	require.NotEmpty(t, unsolved.ID)

	got, err := s.GetRun(unsolved.ID)
	require.NoError(t, err)
	assert.Equal(t, "INFEASIBLE", got.Status)
	assert.Nil(t, got.Objective)
	assert.True(t, unsolved.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", unsolved.CreatedAt, got.CreatedAt)

	runs, err := s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "cpls_5/inst3", runs[0].ExperimentID)
	assert.Equal(t, "cpls_5/inst2", runs[1].ExperimentID)
	require.NotNil(t, runs[1].Objective)
	assert.Equal(t, 102.0, *runs[1].Objective)

	all, err := s.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = s.GetRun("missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.NoError(t, s.HealthCheck())
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}

func TestSQLiteConcurrentRecords(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.RecordRun(sampleRun(i))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 20)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), Config{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(context.Background(), Config{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = NewStore(context.Background(), Config{Type: "mongo"})
	assert.True(t, errors.Is(err, ErrUnsupportedDatabase))

	_, err = NewStore(context.Background(), Config{Type: "postgres"})
	assert.Error(t, err)
}
