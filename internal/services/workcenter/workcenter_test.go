package workcenter

import (
	"context"
	"testing"
	"time"

	"github.com/mesworks/shopsched/internal/services/servicetest"
	"github.com/mesworks/shopsched/pkg/apperrors"
	"github.com/mesworks/shopsched/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *servicetest.FakeDB) {
	db := servicetest.New(t)
	log := logger.New("workcenter-test", "test")
	log.DisableConsoleOutput()
	return &Service{db: db, logger: log}, db
}

// Reactivating a soft-deleted work center drops whatever routes the old row
// carried and writes only the new target set, so stale associations cannot
// leak into the revived record.
func TestCreateReactivationReplacesStaleRoutes(t *testing.T) {
	svc, db := newTestService(t)
	now := time.Now().UTC()

	db.ExpectQuery("FROM lines", []any{int64(1)})
	db.ExpectQuery("FROM operation_types", []any{int64(3)})
	db.ExpectQuery("FROM work_centers WHERE LOWER(work_center_name)", []any{int64(7), false})
	db.ExpectBegin()
	db.ExpectExec("DELETE FROM work_center_operation_routes")
	db.ExpectExec("UPDATE work_centers")
	db.ExpectExec("INSERT INTO work_center_operation_routes")
	db.ExpectCommit()
	db.ExpectRow("FROM work_centers w", int64(7), "Press Shop", 40, int64(1), "Line A", true, now, now)
	db.ExpectQuery("FROM work_center_operation_routes",
		[]any{int64(50), int64(3), "Pressing", 1, 1, 0, now, nil, nil})

	created, err := svc.Create(context.Background(), Input{
		Name:             "Press Shop",
		OptimalBatchSize: 40,
		LineID:           1,
		OperationTypeIDs: []int64{3},
	})
	require.NoError(t, err)
	db.AssertDone()

	assert.Equal(t, int64(7), created.ID, "the soft-deleted row must be reused")
	assert.Empty(t, db.Statements("INSERT INTO work_centers"), "reactivation must not insert a new row")

	require.Len(t, db.Statements("DELETE FROM work_center_operation_routes"), 1,
		"the old row's routes must be cleared before rebuilding")
	inserts := db.Statements("INSERT INTO work_center_operation_routes")
	require.Len(t, inserts, 1)
	assert.Equal(t, int64(3), inserts[0].Args[1])

	require.Len(t, created.OperationRoutes, 1)
	assert.Equal(t, int64(3), created.OperationRoutes[0].OperationTypeID)
	assert.Equal(t, 1, created.OperationRoutes[0].Order)
}

func TestCreateRequiresOperationTypes(t *testing.T) {
	svc, db := newTestService(t)

	db.ExpectQuery("FROM lines", []any{int64(1)})

	_, err := svc.Create(context.Background(), Input{Name: "Press Shop", LineID: 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Contains(t, apperrors.FieldsOf(err), "operationTypeIds")
	db.AssertDone()
}
