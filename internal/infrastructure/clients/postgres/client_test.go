package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestClient_ReaderWithoutReplicasIsPrimary(t *testing.T) {
	primary, _ := newMockDB(t)
	defer primary.Close()

	c := NewClientFromDB(primary, time.Second)
	assert.Same(t, primary, c.Reader())
	assert.Same(t, primary, c.Reader())
}

func TestClient_ReaderRoundRobin(t *testing.T) {
	primary, _ := newMockDB(t)
	r1, _ := newMockDB(t)
	r2, _ := newMockDB(t)

	c := NewClientFromDB(primary, time.Second, r1, r2)
	defer c.Close()

	first := c.Reader()
	second := c.Reader()
	third := c.Reader()
	assert.NotSame(t, first, second)
	assert.Same(t, first, third)
	assert.NotSame(t, primary, first)
	assert.NotSame(t, primary, second)
}

func TestClient_ReadOnlyTxUsesReplica(t *testing.T) {
	primary, primaryMock := newMockDB(t)
	replica, replicaMock := newMockDB(t)
	defer primary.Close()
	defer replica.Close()

	replicaMock.ExpectBegin()
	replicaMock.ExpectRollback()

	c := NewClientFromDB(primary, time.Second, replica)
	tx, err := c.BeginReadOnlyTx(context.Background(), sql.LevelDefault)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.NoError(t, replicaMock.ExpectationsWereMet())
	assert.NoError(t, primaryMock.ExpectationsWereMet())
}

func TestClient_WithQueryTimeout(t *testing.T) {
	c := NewClientFromDB(nil, 50*time.Millisecond)
	ctx, cancel := c.WithQueryTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)

	unbounded := NewClientFromDB(nil, 0)
	ctx, cancel = unbounded.WithQueryTimeout(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
