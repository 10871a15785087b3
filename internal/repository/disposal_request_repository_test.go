package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procurement-api/internal/models"
)

func TestDisposalRequestRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDisposalRequestRepository(db)

	mock.ExpectExec("INSERT INTO disposal_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.DisposalRequest{AssetID: "a1", RequestedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.DisposalRequestPending, req.Status)
	assert.False(t, req.RequestDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRequestRepositoryHasPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDisposalRequestRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("a1", "Pending").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	pending, err := repo.HasPending(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}
