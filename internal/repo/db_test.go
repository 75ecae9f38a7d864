package repo

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/config"
	"github.com/tbourn/go-chat-relay/internal/domain"
)

func openFile(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "relay.db")

	db, err := OpenSQLite(path)
	if db != nil || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want fs.ErrNotExist", path, db, err)
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	db := openFile(t)

	cases := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for pragma, want := range cases {
		var got string
		if err := db.Raw("PRAGMA " + pragma).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", pragma, err)
		}
		if strings.ToLower(got) != want {
			t.Errorf("PRAGMA %s = %q, want %q", pragma, got, want)
		}
	}

	sqlDB, _ := db.DB()
	if got := sqlDB.Stats().MaxOpenConnections; got != 10 {
		t.Errorf("MaxOpenConnections = %d, want 10", got)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("data/relay.db")
	path, query, found := strings.Cut(dsn, "?")
	if !found || path != "data/relay.db" {
		t.Fatalf("dsn = %q", dsn)
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if got := q["_pragma"]; !slices.Equal(got, sqlitePragmas) {
		t.Fatalf("_pragma = %v, want %v", got, sqlitePragmas)
	}
}

func TestAutoMigrate_SchemaIsUsable(t *testing.T) {
	db := openFile(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, model := range []any{&domain.User{}, &domain.UserProfile{}, &domain.ChatExchange{}, &domain.Feedback{}, &domain.Idempotency{}} {
		if !db.Migrator().HasTable(model) {
			t.Errorf("no table for %T", model)
		}
	}

	now := time.Now().UTC()
	ex := &domain.ChatExchange{ID: "e1", UserID: "ghost", UserMessage: "hi", BotResponse: "hello", QuestionCategory: "GENEL", ResolvedLanguage: "en", LanguageSource: "preference", Timestamp: now}
	if err := db.Create(ex).Error; err == nil {
		t.Fatal("exchange for an unknown user was accepted; foreign keys are off")
	}

	u := &domain.User{ID: "u1", FirstName: "Ada", LastName: "L", Email: "ada@example.com", PasswordHash: "h", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	ex.UserID = u.ID
	if err := db.Create(ex).Error; err != nil {
		t.Fatalf("insert exchange: %v", err)
	}

	var got domain.ChatExchange
	if err := db.First(&got, "id = ?", "e1").Error; err != nil || got.BotResponse != "hello" {
		t.Fatalf("read back: %+v, %v", got, err)
	}
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestOpen_Driver(t *testing.T) {
	if _, err := Open(config.DBConfig{Driver: "mysql"}); err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Fatalf("Open(mysql) error = %v", err)
	}

	db, err := Open(config.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "open.db")})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if name := db.Dialector.Name(); name != "sqlite" {
		t.Fatalf("dialector = %q, want sqlite", name)
	}
}
