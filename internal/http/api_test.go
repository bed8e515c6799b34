package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/internal/testsupport"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Fields  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

type apiClient struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *apiClient) do(method, path string, body io.Reader, contentType string) (int, envelope, *httptest.ResponseRecorder) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", "ProfileHub/2.3 (iPhone; iOS 17.1)")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)

	rec := httptest.NewRecorder()
	for k, v := range resp.Header {
		rec.Header()[k] = v
	}
	rec.Body.Write(raw)

	var env envelope
	_ = json.Unmarshal(raw, &env)
	return resp.StatusCode, env, rec
}

func (c *apiClient) json(method, path string, payload any) (int, envelope) {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(b)
	}
	status, env, _ := c.do(method, path, body, fiber.MIMEApplicationJSON)
	return status, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type profileBody struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Website   string `json:"website"`
	AvatarURL string `json:"avatar_url"`
	Version   int    `json:"version"`
}

func TestProfileAPI(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)
	client := &apiClient{t: t, app: app}

	status, env := client.json(fiber.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "api@example.com",
		"password": "password123",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	require.True(t, env.Success)
	session := decode[struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}](t, env)
	require.NotEmpty(t, session.Token)
	userID := session.User.ID

	t.Run("requires authentication", func(t *testing.T) {
		anon := &apiClient{t: t, app: app}
		status, env := anon.json(fiber.MethodGet, "/api/v1/profile", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	})

	client.token = session.Token

	t.Run("shows the own profile", func(t *testing.T) {
		status, env := client.json(fiber.MethodGet, "/api/v1/profile", nil)
		require.Equal(t, fiber.StatusOK, status)
		p := decode[profileBody](t, env)
		assert.Equal(t, userID, p.UserID)
		assert.Equal(t, "api@example.com", p.Email)
		assert.Equal(t, 1, p.Version)
	})

	t.Run("updates with optimistic locking", func(t *testing.T) {
		status, env := client.json(fiber.MethodPost, "/api/v1/profile", map[string]any{
			"first_name": "api",
			"version":    1,
		})
		require.Equal(t, fiber.StatusOK, status, env.Error)
		p := decode[profileBody](t, env)
		assert.Equal(t, "Api", p.FirstName)
		assert.Equal(t, 2, p.Version)

		status, env = client.json(fiber.MethodPost, "/api/v1/profile", map[string]any{
			"first_name": "late",
			"version":    1,
		})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.False(t, env.Success)
	})

	t.Run("reports field errors", func(t *testing.T) {
		status, env := client.json(fiber.MethodPost, "/api/v1/profile", map[string]any{
			"website": "not a url",
		})
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.False(t, env.Success)
		require.NotEmpty(t, env.Fields)
		assert.Equal(t, "website", env.Fields[0].Field)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		status, env, _ := client.do(fiber.MethodPost, "/api/v1/profile", bytes.NewReader([]byte("{")), fiber.MIMEApplicationJSON)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "Invalid request body", env.Error)
	})

	t.Run("uploads and serves an avatar", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("avatar", "me.png")
		require.NoError(t, err)
		_, err = part.Write(testsupport.PNGBytes(t, 120, 80))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		status, env, _ := client.do(fiber.MethodPost, "/api/v1/profile/avatar", &buf, mw.FormDataContentType())
		require.Equal(t, fiber.StatusOK, status, env.Error)
		p := decode[profileBody](t, env)
		require.NotEmpty(t, p.AvatarURL)

		status, _, rec := client.do(fiber.MethodGet, p.AvatarURL, nil, "")
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "image/jpeg", rec.Header().Get(fiber.HeaderContentType))
		assert.NotZero(t, rec.Body.Len())

		status, _, _ = client.do(fiber.MethodGet, "/avatars/missing.jpg", nil, "")
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("rejects a missing avatar file", func(t *testing.T) {
		status, env := client.json(fiber.MethodPost, "/api/v1/profile/avatar", nil)
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.False(t, env.Success)
	})

	t.Run("hides private fields from anonymous viewers", func(t *testing.T) {
		anon := &apiClient{t: t, app: app}
		status, env := anon.json(fiber.MethodGet, fmt.Sprintf("/api/v1/users/%d/profile", userID), nil)
		require.Equal(t, fiber.StatusOK, status)
		p := decode[profileBody](t, env)
		assert.Equal(t, "Api", p.FirstName)
		assert.Empty(t, p.Email)

		status, env = anon.json(fiber.MethodGet, "/api/v1/users/999999/profile", nil)
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "Not found", env.Error)
	})

	t.Run("exports account data", func(t *testing.T) {
		status, env, rec := client.do(fiber.MethodGet, "/api/v1/profile/export", nil, "")
		require.Equal(t, fiber.StatusOK, status)
		assert.Contains(t, rec.Header().Get(fiber.HeaderContentDisposition), "attachment")
		export := decode[struct {
			Profile    profileBody       `json:"profile"`
			AuditTrail []json.RawMessage `json:"audit_trail"`
		}](t, env)
		assert.Equal(t, userID, export.Profile.UserID)
		assert.NotEmpty(t, export.AuditTrail)
	})

	t.Run("deletes the account", func(t *testing.T) {
		status, env := client.json(fiber.MethodDelete, "/api/v1/account", nil)
		require.Equal(t, fiber.StatusOK, status, env.Error)
		assert.True(t, env.Success)

		status, _ = client.json(fiber.MethodGet, "/api/v1/profile", nil)
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestAuthAPI(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)
	testsupport.CreateTestUser(t, db, "login@example.com", "password123")
	client := &apiClient{t: t, app: app}

	t.Run("logs in with valid credentials", func(t *testing.T) {
		status, env := client.json(fiber.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "login@example.com",
			"password": "password123",
		})
		require.Equal(t, fiber.StatusOK, status, env.Error)
		assert.NotEmpty(t, decode[struct {
			Token string `json:"token"`
		}](t, env).Token)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		status, env := client.json(fiber.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    "login@example.com",
			"password": "wrong-password",
		})
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.False(t, env.Success)
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		status, env := client.json(fiber.MethodPost, "/api/v1/auth/register", map[string]string{
			"email":    "login@example.com",
			"password": "password123",
		})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.False(t, env.Success)
	})

	t.Run("accepts a token from the test issuer", func(t *testing.T) {
		user := testsupport.CreateTestUser(t, db, "token@example.com", "password123")
		tokenClient := &apiClient{t: t, app: app, token: testsupport.IssueTestToken(t, user.ID)}
		status, env := tokenClient.json(fiber.MethodGet, "/api/v1/profile", nil)
		require.Equal(t, fiber.StatusOK, status, env.Error)
		assert.Equal(t, user.ID, decode[profileBody](t, env).UserID)
	})
}

func TestConnectionsAPI(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)
	alice := testsupport.CreateTestUser(t, db, "alice@example.com", "password123")
	bob := testsupport.CreateTestUser(t, db, "bob@example.com", "password123")
	carol := testsupport.CreateTestUser(t, db, "carol@example.com", "password123")
	testsupport.CreateTestProfile(t, db, bob.ID, nil)

	client := &apiClient{t: t, app: app, token: testsupport.IssueTestToken(t, alice.ID)}
	bobClient := &apiClient{t: t, app: app, token: testsupport.IssueTestToken(t, bob.ID)}
	carolClient := &apiClient{t: t, app: app, token: testsupport.IssueTestToken(t, carol.ID)}

	type connectionBody struct {
		FriendID uint   `json:"friend_id"`
		State    string `json:"state"`
	}

	status, env := client.json(fiber.MethodPost, fmt.Sprintf("/api/v1/connections/%d", bob.ID), nil)
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	assert.Equal(t, "pending", decode[connectionBody](t, env).State)

	status, env = client.json(fiber.MethodPost, fmt.Sprintf("/api/v1/connections/%d", alice.ID), nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Error, "themselves")

	status, env = client.json(fiber.MethodGet, "/api/v1/connections", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]profileBody](t, env))

	// Only the target can answer a request.
	status, _ = client.json(fiber.MethodPost, fmt.Sprintf("/api/v1/connections/requests/%d/accept", bob.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = bobClient.json(fiber.MethodGet, "/api/v1/connections/requests", nil)
	require.Equal(t, fiber.StatusOK, status)
	requests := decode[[]struct {
		RequesterID uint `json:"requester_id"`
	}](t, env)
	require.Len(t, requests, 1)
	assert.Equal(t, alice.ID, requests[0].RequesterID)

	status, env = bobClient.json(fiber.MethodPost, fmt.Sprintf("/api/v1/connections/requests/%d/accept", alice.ID), nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	assert.Equal(t, "connected", decode[connectionBody](t, env).State)

	status, env = client.json(fiber.MethodGet, "/api/v1/connections", nil)
	require.Equal(t, fiber.StatusOK, status)
	friends := decode[[]profileBody](t, env)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].UserID)

	t.Run("declined request", func(t *testing.T) {
		status, env := carolClient.json(fiber.MethodPost, fmt.Sprintf("/api/v1/connections/%d", alice.ID), nil)
		require.Equal(t, fiber.StatusCreated, status, env.Error)

		status, _ = client.json(fiber.MethodPost, fmt.Sprintf("/api/v1/connections/requests/%d/decline", carol.ID), nil)
		assert.Equal(t, fiber.StatusOK, status)

		status, env = carolClient.json(fiber.MethodGet, "/api/v1/connections", nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Empty(t, decode[[]profileBody](t, env))
	})

	status, _ = client.json(fiber.MethodDelete, fmt.Sprintf("/api/v1/connections/%d", bob.ID), nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = client.json(fiber.MethodGet, "/api/v1/connections", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]profileBody](t, env))
}

// Native apps send neither Sec-Fetch-Site nor cookies, only a bearer token.
func TestNativeClientWrites(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)
	user := testsupport.CreateTestUser(t, db, "native@example.com", "password123")

	post := func(path, token string, payload any) int {
		t.Helper()
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		req.Header.Set("User-Agent", "okhttp/4.12.0")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		require.Empty(t, req.Header.Get("Sec-Fetch-Site"))
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, post("/api/v1/auth/login", "", map[string]string{
		"email":    "native@example.com",
		"password": "password123",
	}))
	assert.Equal(t, fiber.StatusOK, post("/api/v1/profile", testsupport.IssueTestToken(t, user.ID), map[string]string{
		"first_name": "Nat",
	}))
}

func TestHealthAPI(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateMinimalTestApp(t, db)

	req := httptest.NewRequest(fiber.MethodGet, "/_health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var health struct {
		Status   string `json:"status"`
		DBStatus string `json:"db_status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.DBStatus)
}
