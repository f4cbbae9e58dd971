package repository

import (
	"context"
	"testing"
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAgent(t *testing.T, db *testDB, id int64) {
	t.Helper()
	agent := &AgentEntity{
		ID:            id,
		Name:          "agent",
		AccessToken:   "token",
		PhoneNumberID: "pn-" + time.Now().Format("150405.000000"),
		CreditBalance: 100,
	}
	require.NoError(t, db.rawDB.Create(agent).Error)
}

func TestCustomerRepository_GetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db.DB)
	ctx := context.Background()
	seedAgent(t, db, 1)

	created, err := repo.GetOrCreate(ctx, &model.Customer{
		AgentID: 1,
		Phone:   "+15551230001",
		Name:    "Alice",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Nil(t, created.LastInboundAt)

	// Second call resolves the same row, it does not insert.
	again, err := repo.GetOrCreate(ctx, &model.Customer{
		AgentID: 1,
		Phone:   "+15551230001",
		Name:    "Someone Else",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Alice", again.Name)
}

func TestCustomerRepository_GetByPhone_ScopedToAgent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db.DB)
	ctx := context.Background()
	seedAgent(t, db, 1)
	seedAgent(t, db, 2)

	_, err := repo.Create(ctx, &model.Customer{AgentID: 1, Phone: "+15551230001"})
	require.NoError(t, err)

	_, err = repo.GetByPhone(ctx, 2, "+15551230001")
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	got, err := repo.GetByPhone(ctx, 1, "+15551230001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AgentID)
}

func TestCustomerRepository_TouchLastInbound_Monotonic(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db.DB)
	ctx := context.Background()
	seedAgent(t, db, 1)

	c, err := repo.Create(ctx, &model.Customer{AgentID: 1, Phone: "+15551230001"})
	require.NoError(t, err)

	newer := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	require.NoError(t, repo.TouchLastInbound(ctx, c.ID, newer))

	got, err := repo.GetByPhone(ctx, 1, "+15551230001")
	require.NoError(t, err)
	require.NotNil(t, got.LastInboundAt)
	assert.True(t, got.LastInboundAt.Equal(newer))

	// A redelivered older event must not move the anchor backward.
	require.NoError(t, repo.TouchLastInbound(ctx, c.ID, older))

	got, err = repo.GetByPhone(ctx, 1, "+15551230001")
	require.NoError(t, err)
	require.NotNil(t, got.LastInboundAt)
	assert.True(t, got.LastInboundAt.Equal(newer))
}
