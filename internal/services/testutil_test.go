package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database. One connection keeps
// every query on the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var (
	hashOnce sync.Once
	testHash string
)

// createUser stores a confirmed user whose password is "secret123".
func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	hashOnce.Do(func() {
		h, err := utils.HashPassword("secret123")
		if err != nil {
			panic(err)
		}
		testHash = h
	})

	user := models.User{
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
		Password:  testHash,
		Confirmed: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return &user
}

type broadcastCall struct {
	Room    string
	Event   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, room, event string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{Room: room, Event: event, Payload: payload})
	return nil
}

func (b *recordingBroadcaster) events() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcastCall(nil), b.calls...)
}

type captureMailQueue struct {
	mu   sync.Mutex
	sent []*Mail
}

func (q *captureMailQueue) Enqueue(_ context.Context, mail *Mail) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, mail)
	return nil
}

func (q *captureMailQueue) IsAsync() bool { return false }

func (q *captureMailQueue) Close() error { return nil }

func (q *captureMailQueue) last() *Mail {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.sent) == 0 {
		return nil
	}
	return q.sent[len(q.sent)-1]
}

func strPtr(s string) *string { return &s }
