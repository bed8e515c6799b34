package testsupport

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/crypto"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"profilehub/internal"
	"profilehub/internal/audit"
	"profilehub/internal/avatars"
	"profilehub/internal/config"
	"profilehub/internal/connections"
	"profilehub/internal/database"
	"profilehub/internal/profiles"
	"profilehub/internal/usecases"
	"profilehub/internal/users"
)

// SessionCookieName is the expected cookie name for session cookies in tests.
// This should match the pattern used in routes.go: cfg.AppName + "_session"
const SessionCookieName = "profilehub_session"

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// TestConfig returns the shared configuration switched to the test environment.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	if os.Getenv("PROFILEHUB_ENV") != config.Test {
		t.Setenv("PROFILEHUB_ENV", config.Test)
		config.Reset()
	}
	cfg := config.GetConfig()

	// SAFETY CHECK: Ensure we're in test environment
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set PROFILEHUB_ENV=test", cfg.Environment)
	}
	return cfg
}

// SetupTestDB creates a test database with every model migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	TestConfig(t)

	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestUser creates a user with a hashed password, or returns the existing one.
func CreateTestUser(t *testing.T, db *gorm.DB, email, password string) *users.User {
	t.Helper()

	if existing, err := users.FindByEmail(db, email); err == nil {
		return existing
	}

	hash, err := crypto.GeneratePasswordHash(password)
	require.NoError(t, err)

	user := &users.User{
		Email:             users.NormalizeEmail(email),
		EncryptedPassword: string(hash),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestProfile stores a default profile for userID after applying mutate.
func CreateTestProfile(t *testing.T, db *gorm.DB, userID uint, mutate func(*profiles.Profile)) *profiles.Profile {
	t.Helper()

	user, err := users.FindByID(db, userID)
	require.NoError(t, err)

	p := profiles.NewProfile(userID, user.Email)
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Befriend connects a and b the way the API does: a asks, b accepts.
func Befriend(t *testing.T, db *gorm.DB, a, b uint) {
	t.Helper()
	_, err := connections.RequestFriendship(db, a, b)
	require.NoError(t, err)
	require.NoError(t, connections.Accept(db, b, a))
}

// ServiceFixture bundles a service with the collaborators tests inspect.
type ServiceFixture struct {
	DB       *gorm.DB
	Service  *usecases.Service
	Profiles *profiles.Repository
	Cache    *profiles.MemoryCache
	Avatars  *avatars.FileStore
}

// NewTestService builds a service over db with a temporary avatar directory.
func NewTestService(t *testing.T, db *gorm.DB) *ServiceFixture {
	t.Helper()

	log := GetLogger()
	cache := profiles.NewMemoryCache(10 * time.Minute)
	repo := profiles.NewRepository(db, cache, log)
	store, err := avatars.NewFileStore(t.TempDir(), "/avatars/")
	require.NoError(t, err)

	svc := usecases.NewService(usecases.Options{
		DB:         db,
		Repository: repo,
		Store:      store,
		Recorder:   audit.NewRecorder(db, log, audit.FileOptions{}),
		Logger:     log,
	})

	return &ServiceFixture{
		DB:       db,
		Service:  svc,
		Profiles: repo,
		Cache:    cache,
		Avatars:  store,
	}
}

// IssueTestToken signs a bearer token the way the running server does.
func IssueTestToken(t *testing.T, userID uint) string {
	t.Helper()
	cfg := TestConfig(t)
	token, _, err := internal.NewTokenIssuer(cfg).Issue(userID)
	require.NoError(t, err)
	return token
}

// PNGBytes encodes a w x h image filled with a single colour.
func PNGBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := TestConfig(t)
	appConfig.DatabasePath = t.TempDir()

	cfg := internal.ServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
