package sink

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestConnectionProvider_RetriesThenSucceeds(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	opens := 0
	provider, err := NewConnectionProvider(func(ctx context.Context) (*sql.DB, error) {
		opens++
		if opens < 3 {
			return nil, errors.New("connection refused")
		}
		return db, nil
	}, 3, 0)
	require.NoError(t, err)

	conn, err := provider.Connection(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, 3, opens)

	again, err := provider.Connection(context.Background())
	require.NoError(t, err)
	require.Same(t, conn, again, "valid connection must be reused")
	require.Equal(t, 3, opens)
}

func TestConnectionProvider_GivesUp(t *testing.T) {
	opens := 0
	provider, err := NewConnectionProvider(func(ctx context.Context) (*sql.DB, error) {
		opens++
		return nil, errors.New("connection refused")
	}, 2, 0)
	require.NoError(t, err)

	_, err = provider.Connection(context.Background())
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	require.Equal(t, 2, connErr.Attempts)
	require.Equal(t, 2, opens)
	require.True(t, IsRetryable(err))
}

func TestConnectionProvider_InvalidateReopens(t *testing.T) {
	opens := 0
	provider, err := NewConnectionProvider(func(ctx context.Context) (*sql.DB, error) {
		opens++
		db, _, err := sqlmock.New()
		return db, err
	}, 1, 0)
	require.NoError(t, err)

	_, err = provider.Connection(context.Background())
	require.NoError(t, err)

	provider.Invalidate()

	_, err = provider.Connection(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, opens)
	provider.Close()
}

func TestConnectionProvider_ReconnectsOnFailedPing(t *testing.T) {
	opens := 0
	var first sqlmock.Sqlmock
	provider, err := NewConnectionProvider(func(ctx context.Context) (*sql.DB, error) {
		opens++
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if opens == 1 {
			first = mock
		}
		return db, err
	}, 1, 0)
	require.NoError(t, err)

	_, err = provider.Connection(context.Background())
	require.NoError(t, err)

	first.ExpectPing().WillReturnError(errors.New("broken pipe"))

	_, err = provider.Connection(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, opens)
	provider.Close()
}
