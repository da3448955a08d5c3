package payroll

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewflow/crewflow-platform/pkg/database"
	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/testutil"
)

func runColumns() []string {
	return []string{
		"id", "started_by", "pay_period_start", "pay_period_end",
		"current_step", "total_steps", "status", "state",
		"created_at", "updated_at", "completed_at",
	}
}

func TestRepository_Current(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewRepository(database.Wrap(mockDB.DB, logger.Nop()))
	ctx := testutil.TestTenantContext()

	now := time.Now()
	periodStart := now.AddDate(0, 0, -14)
	rows := testutil.MockRows(runColumns()...).
		AddRow("11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222",
			periodStart, now, 3, 8, RunInProgress, []byte(`{"employee_ids":["emp-1"]}`),
			now, now, nil)
	mockDB.ExpectTenantQuery("tenant_test",
		"SELECT id, started_by, pay_period_start, pay_period_end",
		rows,
	)

	run, err := repo.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, run.CurrentStep)
	assert.Equal(t, RunInProgress, run.Status)

	state, err := run.StateMap()
	require.NoError(t, err)
	assert.Contains(t, state, KeyEmployeeIDs)
	mockDB.ExpectationsWereMet(t)
}

func TestRepository_CurrentNoActiveRun(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewRepository(database.Wrap(mockDB.DB, logger.Nop()))
	ctx := testutil.TestTenantContext()

	mockDB.ExpectBegin()
	mockDB.ExpectExec("SET LOCAL search_path TO tenant_test, public").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT id, started_by, pay_period_start, pay_period_end").
		WillReturnRows(testutil.MockRows(runColumns()...))
	mockDB.Mock.ExpectRollback()

	_, err := repo.Current(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRepository_Create(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewRepository(database.Wrap(mockDB.DB, logger.Nop()))
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantExec("tenant_test",
		"INSERT INTO payroll_runs",
		sqlmock.NewResult(1, 1),
	)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	run, err := repo.Create(ctx, "22222222-2222-2222-2222-222222222222", &start, &end, json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.CurrentStep)
	assert.Equal(t, TotalSteps, run.TotalSteps)
	assert.Equal(t, RunInProgress, run.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestRepository_SaveProgress(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewRepository(database.Wrap(mockDB.DB, logger.Nop()))
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantExec("tenant_test",
		"UPDATE payroll_runs",
		sqlmock.NewResult(0, 1),
	)

	err := repo.SaveProgress(ctx, "11111111-1111-1111-1111-111111111111", 4,
		json.RawMessage(`{"timesheets_approved":true}`), false)
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestRepository_SaveProgressMissingRun(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewRepository(database.Wrap(mockDB.DB, logger.Nop()))
	ctx := testutil.TestTenantContext()

	mockDB.ExpectBegin()
	mockDB.ExpectExec("SET LOCAL search_path TO tenant_test, public").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("UPDATE payroll_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.Mock.ExpectRollback()

	err := repo.SaveProgress(ctx, "11111111-1111-1111-1111-111111111111", 2, nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRepository_Abandon(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewRepository(database.Wrap(mockDB.DB, logger.Nop()))
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantExec("tenant_test",
		"UPDATE payroll_runs",
		sqlmock.NewResult(0, 1),
	)

	require.NoError(t, repo.Abandon(ctx, "11111111-1111-1111-1111-111111111111"))
	mockDB.ExpectationsWereMet(t)
}

func TestProgressStore_RoundTrip(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := NewRepository(database.Wrap(mockDB.DB, logger.Nop()))
	ctx := testutil.TestTenantContext()
	store := &progressStore{repo: repo, runID: "11111111-1111-1111-1111-111111111111"}

	now := time.Now()
	rows := testutil.MockRows(runColumns()...).
		AddRow("11111111-1111-1111-1111-111111111111", "22222222-2222-2222-2222-222222222222",
			now, now, 5, 8, RunInProgress, []byte(`{"approved_by":"mgr-1"}`),
			now, now, nil)
	mockDB.ExpectTenantQuery("tenant_test",
		"SELECT id, started_by, pay_period_start, pay_period_end",
		rows,
	)

	progress, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, 5, progress.CurrentStep)
	assert.Equal(t, "mgr-1", progress.State[KeyApprovedBy])
	assert.False(t, progress.Completed)

	mockDB.ExpectTenantExec("tenant_test",
		"UPDATE payroll_runs",
		sqlmock.NewResult(0, 1),
	)

	progress.CurrentStep = 6
	require.NoError(t, store.Save(ctx, progress))
	mockDB.ExpectationsWereMet(t)
}
