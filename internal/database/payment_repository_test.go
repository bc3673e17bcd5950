package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentRowColumns = []string{
	"id", "reference", "user_id", "event_id", "amount", "currency", "reason", "status",
	"checkout_url", "gateway_uid", "notification_url", "redirect_url", "paid_at", "created_at", "updated_at",
}

func TestPaymentRepository_GetByReference(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	ctx := context.Background()
	ref := uuid.NewString()

	t.Run("found", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM payments WHERE reference").
			WithArgs(ref).
			WillReturnRows(sqlmock.NewRows(paymentRowColumns).
				AddRow(uuid.NewString(), ref, uuid.NewString(), uuid.NewString(), 90.0, "LKR", "registration", "pending",
					"https://pay.example/x", nil, "https://api.example/hook", "https://app.example/return", nil, now, now))

		p, err := repo.GetByReference(ctx, ref)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, models.PaymentStatusPending, p.Status)
		assert.Equal(t, "https://pay.example/x", *p.CheckoutURL)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM payments WHERE reference").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(paymentRowColumns))

		p, err := repo.GetByReference(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Create(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.Create(ctx, &models.Payment{Reference: uuid.NewString()})
	require.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.Create(ctx, &models.Payment{Reference: uuid.NewString()})
	require.NoError(t, err)
	assert.False(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Settle(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	ctx := context.Background()
	ref := uuid.NewString()
	userID := uuid.New()
	eventID := uuid.New()
	now := time.Now()

	t.Run("settles pending allocations", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE payments").
			WithArgs(ref).
			WillReturnRows(sqlmock.NewRows(paymentRowColumns).
				AddRow(uuid.NewString(), ref, userID.String(), eventID.String(), 180.0, "LKR", "registration", "paid",
					nil, "uid-1", "", "", now, now, now))
		mock.ExpectQuery("UPDATE allocations").
			WithArgs(userID, eventID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "registration_id", "event_id", "user_id", "facility_id", "kind", "room_type_id",
				"status", "paired_with", "pairing_code", "code_consumed_at", "created_at", "updated_at",
			}).AddRow(uuid.NewString(), uuid.NewString(), eventID.String(), userID.String(), uuid.NewString(), "HOTEL", uuid.NewString(),
				"paid", nil, nil, nil, now, now))
		mock.ExpectCommit()

		p, allocations, settled, err := repo.Settle(ctx, ref)
		require.NoError(t, err)
		assert.True(t, settled)
		assert.Equal(t, models.PaymentStatusPaid, p.Status)
		require.Len(t, allocations, 1)
		assert.Equal(t, models.AllocationPaid, allocations[0].Status)
	})

	t.Run("already paid is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE payments").
			WithArgs(ref).
			WillReturnRows(sqlmock.NewRows(paymentRowColumns))
		mock.ExpectRollback()

		p, allocations, settled, err := repo.Settle(ctx, ref)
		require.NoError(t, err)
		assert.False(t, settled)
		assert.Nil(t, p)
		assert.Nil(t, allocations)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ExpireStale(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	cutoff := time.Now().Add(-2 * time.Hour)

	mock.ExpectQuery("UPDATE payments SET status = 'failed'").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"reference"}).AddRow("ref-1").AddRow("ref-2"))

	refs, err := repo.ExpireStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"ref-1", "ref-2"}, refs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
