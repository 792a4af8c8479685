package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitReady_RetriesUntilPingSucceeds(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("starting up"))
	mock.ExpectPing().WillReturnError(errors.New("starting up"))
	mock.ExpectPing()

	require.NoError(t, db.waitReady(context.Background(), time.Millisecond))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitReady_GivesUp(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	down := errors.New("connection refused")
	for i := 0; i < connectAttempts; i++ {
		mock.ExpectPing().WillReturnError(down)
	}

	err := db.waitReady(context.Background(), time.Millisecond)
	require.ErrorContains(t, err, "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitReady_Cancelled(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, db.waitReady(ctx, time.Millisecond), context.Canceled)
}

func TestNew_BadDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz")
	require.Error(t, err)
}
