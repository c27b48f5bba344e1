package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestLoadReadsLocations(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT location FROM processed_documents").
		WillReturnRows(pgxmock.NewRows([]string{"location"}).
			AddRow("https://a/1.pdf").
			AddRow("https://a/2.pdf"))

	set, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/1.pdf", "https://a/2.pdf"}, set.Sorted())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadQueryError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT location").WillReturnError(errors.New("relation does not exist"))

	_, err := store.Load(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveInsertsSortedLocations(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO processed_documents").
		WithArgs([]string{"https://a/1.pdf", "https://b/2.pdf"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	err := store.Save(context.Background(), gazette.NewHistorySet("https://b/2.pdf", "https://a/1.pdf"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEmptySetIsNoop(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	require.NoError(t, store.Save(context.Background(), gazette.NewHistorySet()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS processed_documents").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad-name;drop")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
