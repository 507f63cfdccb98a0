package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

var documentCols = []string{"id", "kind", "restaurant_id", "customer_id", "delivery_man_id", "state", "body",
	"created_at", "updated_at"}

func TestDocumentRepo_CreateDefaultsBody(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(model.KindOrder, uint64(7), uint64(2), uint64(0), "pending", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE kind = ? AND id = ?")).
		WithArgs(model.KindOrder, uint64(11)).
		WillReturnRows(sqlmock.NewRows(documentCols).
			AddRow(uint64(11), "orders", uint64(7), uint64(2), uint64(0), "pending", []byte("{}"), now, now))

	d, err := NewDocumentRepo(db).Create(context.Background(), model.Document{
		Kind: model.KindOrder, RestaurantID: 7, CustomerID: 2, State: "pending",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), d.ID)
	assert.Equal(t, model.KindOrder, d.Kind)
	assert.JSONEq(t, "{}", string(d.Body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepo_GetScopedByKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE kind = ? AND id = ?")).
		WithArgs(model.KindMenu, uint64(11)).
		WillReturnRows(sqlmock.NewRows(documentCols))

	_, err = NewDocumentRepo(db).GetByID(context.Background(), model.KindMenu, 11)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDocumentRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE kind = ?")).
		WithArgs(model.KindDelivery).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := NewDocumentRepo(db).Count(context.Background(), model.KindDelivery)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestErrorCodeRoundTrip(t *testing.T) {
	for _, err := range []error{ErrUserNotFound, ErrMailExists, ErrStaleRefreshToken, ErrDocumentNotFound} {
		assert.ErrorIs(t, FromCode(ErrorCode(err)), err)
	}
	assert.Empty(t, ErrorCode(assert.AnError))
	assert.Nil(t, FromCode("nope"))
}
