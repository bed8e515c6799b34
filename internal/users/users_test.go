package users_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"profilehub/internal/testsupport"
	"profilehub/internal/users"
)

func TestFindByEmail(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("finds existing user", func(t *testing.T) {
		testUser := testsupport.CreateTestUser(t, db, "test@example.com", "password123")

		foundUser, err := users.FindByEmail(db, "test@example.com")

		require.NoError(t, err)
		assert.NotNil(t, foundUser)
		assert.Equal(t, testUser.Email, foundUser.Email)
		assert.Equal(t, testUser.ID, foundUser.ID)
	})

	t.Run("ignores case and surrounding spaces", func(t *testing.T) {
		testsupport.CreateTestUser(t, db, "mixed@example.com", "password123")

		foundUser, err := users.FindByEmail(db, "  Mixed@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, "mixed@example.com", foundUser.Email)
	})

	t.Run("returns error for non-existent user", func(t *testing.T) {
		foundUser, err := users.FindByEmail(db, "nonexistent@example.com")

		assert.Error(t, err)
		assert.Nil(t, foundUser)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("returns error for empty email", func(t *testing.T) {
		foundUser, err := users.FindByEmail(db, "")

		assert.Error(t, err)
		assert.Nil(t, foundUser)
	})
}

func TestCreateUser(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("creates new user successfully", func(t *testing.T) {
		user, err := users.CreateUser(db, "NewUser@example.com", "securepassword123")
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.Equal(t, "newuser@example.com", user.Email)

		foundUser, err := users.FindByEmail(db, "newuser@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, foundUser.EncryptedPassword)
		assert.NotEqual(t, "securepassword123", foundUser.EncryptedPassword)
	})

	t.Run("returns error when user already exists", func(t *testing.T) {
		_, err := users.CreateUser(db, "existing@example.com", "password123")
		require.NoError(t, err)

		_, err = users.CreateUser(db, "existing@example.com", "password123")
		assert.ErrorIs(t, err, users.ErrUserExists)
	})

	t.Run("returns error for empty email", func(t *testing.T) {
		_, err := users.CreateUser(db, "", "password123")
		assert.Error(t, err)
	})

	t.Run("returns error for short password", func(t *testing.T) {
		_, err := users.CreateUser(db, "short@example.com", "abc")
		assert.Error(t, err)

		_, err = users.FindByEmail(db, "short@example.com")
		assert.ErrorIs(t, err, users.ErrUserNotFound)
	})
}

func TestAuthenticate(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	_, err := users.CreateUser(db, "login@example.com", "correct-horse")
	require.NoError(t, err)

	t.Run("accepts the right password", func(t *testing.T) {
		user, err := users.Authenticate(db, "login@example.com", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, "login@example.com", user.Email)
		assert.NotNil(t, user.LastLoginAt)
	})

	t.Run("rejects the wrong password", func(t *testing.T) {
		_, err := users.Authenticate(db, "login@example.com", "battery-staple")
		assert.ErrorIs(t, err, users.ErrInvalidCredentials)
	})

	t.Run("unknown email looks like a wrong password", func(t *testing.T) {
		_, err := users.Authenticate(db, "ghost@example.com", "correct-horse")
		assert.ErrorIs(t, err, users.ErrInvalidCredentials)
	})
}

func TestChangePassword(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("changes password successfully", func(t *testing.T) {
		email := "changepass@example.com"

		_, err := users.CreateUser(db, email, "oldpassword123")
		require.NoError(t, err)

		err = users.ChangePassword(db, email, "newpassword456")
		require.NoError(t, err)

		_, err = users.Authenticate(db, email, "oldpassword123")
		assert.ErrorIs(t, err, users.ErrInvalidCredentials)
		_, err = users.Authenticate(db, email, "newpassword456")
		assert.NoError(t, err)
	})

	t.Run("returns error for non-existent user", func(t *testing.T) {
		err := users.ChangePassword(db, "nonexistent@example.com", "newpassword")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("returns error for empty password", func(t *testing.T) {
		email := "testuser@example.com"
		_, err := users.CreateUser(db, email, "password123")
		require.NoError(t, err)

		err = users.ChangePassword(db, email, "")
		assert.Error(t, err)
	})
}

func TestDeleteUser(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	user, err := users.CreateUser(db, "leaving@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, users.DeleteUser(db, user.ID))
	_, err = users.FindByID(db, user.ID)
	assert.ErrorIs(t, err, users.ErrUserNotFound)

	assert.NoError(t, users.DeleteUser(db, user.ID))

	count, err := users.Count(db)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestErrUserNotFound(t *testing.T) {
	t.Run("ErrUserNotFound is gorm.ErrRecordNotFound", func(t *testing.T) {
		assert.Equal(t, gorm.ErrRecordNotFound, users.ErrUserNotFound)
	})
}
