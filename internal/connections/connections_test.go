package connections_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"profilehub/internal/connections"
	"profilehub/internal/testsupport"
)

func TestConnections(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	alice := testsupport.CreateTestUser(t, db, "alice@example.com", "password123")
	bob := testsupport.CreateTestUser(t, db, "bob@example.com", "password123")
	carol := testsupport.CreateTestUser(t, db, "carol@example.com", "password123")

	t.Run("request stays pending until accepted", func(t *testing.T) {
		state, err := connections.RequestFriendship(db, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, connections.StatePending, state)

		ok, err := connections.AreFriends(db, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		incoming, err := connections.ListIncoming(db, bob.ID)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		assert.Equal(t, alice.ID, incoming[0].RequesterID)

		outgoing, err := connections.ListIncoming(db, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, outgoing)
	})

	t.Run("asking twice keeps one request", func(t *testing.T) {
		state, err := connections.RequestFriendship(db, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, connections.StatePending, state)

		var count int64
		require.NoError(t, db.Model(&connections.Request{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("only the target can accept", func(t *testing.T) {
		assert.ErrorIs(t, connections.Accept(db, alice.ID, bob.ID), gorm.ErrRecordNotFound)
	})

	t.Run("accepting connects both directions", func(t *testing.T) {
		require.NoError(t, connections.Accept(db, bob.ID, alice.ID))

		ok, err := connections.AreFriends(db, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = connections.AreFriends(db, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		incoming, err := connections.ListIncoming(db, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, incoming)

		state, err := connections.RequestFriendship(db, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, connections.StateConnected, state)

		var count int64
		require.NoError(t, db.Model(&connections.Connection{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("crossing requests connect", func(t *testing.T) {
		_, err := connections.RequestFriendship(db, carol.ID, alice.ID)
		require.NoError(t, err)
		state, err := connections.RequestFriendship(db, alice.ID, carol.ID)
		require.NoError(t, err)
		assert.Equal(t, connections.StateConnected, state)

		friends, err := connections.ListFriends(db, alice.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{bob.ID, carol.ID}, friends)

		none, err := connections.ListFriends(db, 999)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("decline drops the request", func(t *testing.T) {
		_, err := connections.RequestFriendship(db, carol.ID, bob.ID)
		require.NoError(t, err)
		require.NoError(t, connections.Decline(db, bob.ID, carol.ID))

		ok, err := connections.AreFriends(db, bob.ID, carol.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.ErrorIs(t, connections.Decline(db, bob.ID, carol.ID), gorm.ErrRecordNotFound)
	})

	t.Run("rejects self connection", func(t *testing.T) {
		_, err := connections.RequestFriendship(db, carol.ID, carol.ID)
		assert.ErrorIs(t, err, connections.ErrSelfConnection)
	})

	t.Run("remove breaks both directions", func(t *testing.T) {
		require.NoError(t, connections.Remove(db, bob.ID, alice.ID))

		ok, err := connections.AreFriends(db, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = connections.AreFriends(db, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove all clears friends and requests", func(t *testing.T) {
		_, err := connections.RequestFriendship(db, carol.ID, bob.ID)
		require.NoError(t, err)
		require.NoError(t, connections.RemoveAll(db, carol.ID))

		friends, err := connections.ListFriends(db, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, friends)
		incoming, err := connections.ListIncoming(db, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, incoming)
	})
}
