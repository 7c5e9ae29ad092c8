package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/people-email-enricher/internal/enrich"
)

func newMockStore(t *testing.T) (*RowStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS enriched_rows").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	store, err := NewRowStoreWithPool(context.Background(), mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestAppendInsertsRowsInOrder(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	rows := []enrich.OutputRow{
		{FirstName: "Ann", LastName: "Lee", Street: "1 Main St", City: "Springfield", District: "IL", ZIP: "62701", Email: "ann@gmail.com", Status: enrich.StatusSuccess},
		{FirstName: "Ann", LastName: "Lee", Street: "1 Main St", City: "Chatham", District: "IL", ZIP: "62701", Status: enrich.StatusError},
	}
	mock.ExpectExec(`INSERT INTO enriched_rows \(first_name, last_name, street, city, dist, zip, email, status\) VALUES \(\$1,.*\),\(\$9,`).
		WithArgs(
			"Ann", "Lee", "1 Main St", "Springfield", "IL", "62701", "ann@gmail.com", "SUCCESS",
			"Ann", "Lee", "1 Main St", "Chatham", "IL", "62701", "", "ERROR",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, store.Append(context.Background(), rows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEmptyIsNoop(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	require.NoError(t, store.Append(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendWrapsExecError(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO enriched_rows").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := store.Append(context.Background(), []enrich.OutputRow{{FirstName: "Bo", Status: enrich.StatusError}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert rows")
}

func TestLoadReturnsRowsByID(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	result := pgxmock.NewRows([]string{"first_name", "last_name", "street", "city", "dist", "zip", "email", "status"}).
		AddRow("Ann", "Lee", "1 Main St", "Springfield", "IL", "62701", "ann@gmail.com", "SUCCESS").
		AddRow("Bo", "Ray", "2 Oak Ave", "", "", "10001", "", "ERROR")
	mock.ExpectQuery("SELECT first_name, .* FROM enriched_rows ORDER BY id").WillReturnRows(result)

	rows, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ann@gmail.com", rows[0].Email)
	assert.Equal(t, enrich.StatusError, rows[1].Status)
	assert.Equal(t, "10001", rows[1].ZIP)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRowStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRowStoreWithPool(context.Background(), nil, "rows")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRowStoreWithPool(context.Background(), mock, "rows; DROP TABLE x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestNewRowStoreRequiresDSN(t *testing.T) {
	t.Parallel()
	_, err := NewRowStore(context.Background(), Config{})
	require.Error(t, err)
}
