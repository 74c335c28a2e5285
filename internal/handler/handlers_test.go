package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/events"
	"courier/internal/models"
	"courier/internal/service"
	"courier/internal/storage"
)

type testEnv struct {
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// the in-memory database exists per connection; a second pooled
	// connection would see an empty schema
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.MessageHistory{},
		&models.Notification{},
		&models.Conversation{},
		&models.ConversationParticipant{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:          "127.0.0.1",
			Port:          0,
			Mode:          "test",
			JWTSecret:     "test-secret",
			TokenTTLHours: 1,
		},
		Cache: config.CacheConfig{Enabled: true, TTLSeconds: 60, MaxEntries: 128},
	}

	userRepo := storage.NewUserRepository(db)
	messageRepo := storage.NewMessageRepository(db)
	historyRepo := storage.NewHistoryRepository(db)
	notifRepo := storage.NewNotificationRepository(db)
	convRepo := storage.NewConversationRepository(db)

	bus := events.NewBus()
	users := service.NewUserService(userRepo, bus)
	messages := service.NewMessageService(db, messageRepo, historyRepo, userRepo, convRepo, bus)
	notifications := service.NewNotificationService(notifRepo, nil)
	conversations := service.NewConversationService(convRepo, messageRepo, userRepo, bus)

	hooks := service.NewLifecycleHooks(notifications, messages, messageRepo, historyRepo, userRepo, convRepo, "")
	hooks.Register(bus)

	pageCache := cache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second, cfg.Cache.MaxEntries)
	h := New(cfg, users, messages, notifications, conversations, pageCache, nil)
	srv := NewServer(h)
	return &testEnv{router: srv.server.Handler}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) signupAndLogin(t *testing.T, username string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/signup", "", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret-pass",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", username, w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/login", "", map[string]any{
		"username": username,
		"password": "secret-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response missing token: %s", w.Body.String())
	}
	return resp.Token
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder) uint {
	t.Helper()
	var resp struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode id: %v from %s", err, w.Body.String())
	}
	return resp.ID
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	// protected routes refuse anonymous requests
	if w := env.do(t, http.MethodGet, "/api/notifications", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/notifications", "not-a-token", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}

	token := env.signupAndLogin(t, "alice")
	if w := env.do(t, http.MethodGet, "/api/notifications", token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// wrong password
	w := env.do(t, http.MethodPost, "/login", "", map[string]any{
		"username": "alice",
		"password": "wrong-pass",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}

	// duplicate username
	w = env.do(t, http.MethodPost, "/signup", "", map[string]any{
		"username": "alice",
		"email":    "other@example.com",
		"password": "secret-pass",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate signup, got %d", w.Code)
	}
}

func TestMessageLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupAndLogin(t, "alice")
	bobToken := env.signupAndLogin(t, "bob")
	carolToken := env.signupAndLogin(t, "carol")

	// alice (user 1) sends to bob (user 2)
	w := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"recipient_id": 2,
		"subject":      "hello",
		"body":         "first contact",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status %d body %s", w.Code, w.Body.String())
	}
	msgID := decodeID(t, w)

	// bob sees one unread message and one notification
	w = env.do(t, http.MethodGet, "/api/messages/unread/count", bobToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"count":1`)) {
		t.Fatalf("unread count: status %d body %s", w.Code, w.Body.String())
	}

	// carol cannot edit, delete or read the thread
	path := fmt.Sprintf("/api/messages/%d", msgID)
	if w := env.do(t, http.MethodPut, path, carolToken, map[string]any{"subject": "x", "body": "y"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 edit, got %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, path, carolToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 delete, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, path+"/thread", carolToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 thread, got %d", w.Code)
	}

	// edit by the sender records history
	if w := env.do(t, http.MethodPut, path, aliceToken, map[string]any{"subject": "hello", "body": "revised"}); w.Code != http.StatusOK {
		t.Fatalf("edit: status %d body %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodGet, path+"/history", bobToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("first contact")) {
		t.Fatalf("history: status %d body %s", w.Code, w.Body.String())
	}

	// bulk mark-read is idempotent
	w = env.do(t, http.MethodPost, "/api/messages/read", bobToken, map[string]any{"ids": []uint{msgID}})
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"updated":1`)) {
		t.Fatalf("mark read: status %d body %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/api/messages/read", bobToken, map[string]any{"ids": []uint{msgID}})
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"updated":0`)) {
		t.Fatalf("repeat mark read: status %d body %s", w.Code, w.Body.String())
	}

	// delete by the sender
	if w := env.do(t, http.MethodDelete, path, aliceToken, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d body %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, path+"/thread", bobToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestReplyAndThreadOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupAndLogin(t, "alice")
	bobToken := env.signupAndLogin(t, "bob")

	w := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"recipient_id": 2,
		"subject":      "plans",
		"body":         "dinner?",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status %d body %s", w.Code, w.Body.String())
	}
	rootID := decodeID(t, w)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/reply", rootID), bobToken, map[string]any{
		"body": "sure",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("reply: status %d body %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"subject":"Re: plans"`)) {
		t.Fatalf("reply should inherit subject: %s", w.Body.String())
	}

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/thread", rootID), aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("thread: status %d body %s", w.Code, w.Body.String())
	}
	var tree struct {
		Depth   int `json:"depth"`
		Replies []struct {
			Depth int `json:"depth"`
		} `json:"replies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if tree.Depth != 0 || len(tree.Replies) != 1 || tree.Replies[0].Depth != 1 {
		t.Fatalf("unexpected tree shape: %s", w.Body.String())
	}
}

func TestConversationsCachePerUser(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupAndLogin(t, "alice")
	bobToken := env.signupAndLogin(t, "bob")

	w := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"recipient_id": 2,
		"subject":      "cached",
		"body":         "payload",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status %d body %s", w.Code, w.Body.String())
	}

	// first read misses, second hits
	w = env.do(t, http.MethodGet, "/api/conversations", aliceToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") == "HIT" {
		t.Fatalf("first read should miss: status %d header %q", w.Code, w.Header().Get("X-Cache"))
	}
	w = env.do(t, http.MethodGet, "/api/conversations", aliceToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read should hit: status %d header %q", w.Code, w.Header().Get("X-Cache"))
	}

	// a different user never sees another's cached page
	w = env.do(t, http.MethodGet, "/api/conversations", bobToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") == "HIT" {
		t.Fatalf("other user must miss: status %d header %q", w.Code, w.Header().Get("X-Cache"))
	}

	// a write by alice invalidates her cached page
	w = env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"recipient_id": 2,
		"subject":      "second",
		"body":         "payload",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/conversations", aliceToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") == "HIT" {
		t.Fatalf("read after write should miss: status %d header %q", w.Code, w.Header().Get("X-Cache"))
	}
}

func TestDeleteInvalidatesRecipientCache(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupAndLogin(t, "alice")
	bobToken := env.signupAndLogin(t, "bob")

	w := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"recipient_id": 2,
		"subject":      "doomed",
		"body":         "payload",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status %d body %s", w.Code, w.Body.String())
	}
	msgID := decodeID(t, w)

	// warm bob's cached page
	w = env.do(t, http.MethodGet, "/api/conversations", bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("warm read: status %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/conversations", bobToken, nil)
	if w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read should hit, header %q", w.Header().Get("X-Cache"))
	}

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msgID), aliceToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d body %s", w.Code, w.Body.String())
	}

	// bob's page must not keep serving the deleted thread
	w = env.do(t, http.MethodGet, "/api/conversations", bobToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") == "HIT" {
		t.Fatalf("recipient read after delete should miss: status %d header %q", w.Code, w.Header().Get("X-Cache"))
	}
	if strings.Contains(w.Body.String(), "doomed") {
		t.Fatal("deleted message still listed for recipient")
	}
}

func TestNotificationRoutes(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupAndLogin(t, "alice")
	bobToken := env.signupAndLogin(t, "bob")

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
			"recipient_id": 2,
			"subject":      "n",
			"body":         "body",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("send: status %d", w.Code)
		}
	}

	w := env.do(t, http.MethodGet, "/api/notifications/unread/count", bobToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"count":2`)) {
		t.Fatalf("unread count: status %d body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/notifications?unread=true", bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	var resp struct {
		Notifications []struct {
			ID uint `json:"id"`
		} `json:"notifications"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Notifications) != 2 {
		t.Fatalf("unexpected list: %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", resp.Notifications[0].ID), bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark read: status %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/notifications/read-all", bobToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"updated":1`)) {
		t.Fatalf("read-all should cover the remaining one: status %d body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/notifications/unread/count", bobToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"count":0`)) {
		t.Fatalf("final count: status %d body %s", w.Code, w.Body.String())
	}
}

func TestChatRoutes(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupAndLogin(t, "alice")
	bobToken := env.signupAndLogin(t, "bob")
	carolToken := env.signupAndLogin(t, "carol")

	w := env.do(t, http.MethodPost, "/api/chats", aliceToken, map[string]any{
		"title":           "weekend",
		"participant_ids": []uint{2},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create chat: status %d body %s", w.Code, w.Body.String())
	}
	var conv struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil || conv.ID == "" {
		t.Fatalf("chat response missing id: %s", w.Body.String())
	}

	// members can post, outsiders cannot
	w = env.do(t, http.MethodPost, "/api/chats/"+conv.ID+"/messages", bobToken, map[string]any{"body": "hi all"})
	if w.Code != http.StatusCreated {
		t.Fatalf("chat send: status %d body %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPost, "/api/chats/"+conv.ID+"/messages", carolToken, map[string]any{"body": "intruder"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	// add carol, then she can read
	w = env.do(t, http.MethodPost, "/api/chats/"+conv.ID+"/participants", aliceToken, map[string]any{"user_id": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("add participant: status %d body %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodGet, "/api/chats/"+conv.ID+"/messages", carolToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("hi all")) {
		t.Fatalf("chat messages: status %d body %s", w.Code, w.Body.String())
	}

	// duplicate add is a 400
	if w := env.do(t, http.MethodPost, "/api/chats/"+conv.ID+"/participants", aliceToken, map[string]any{"user_id": 3}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 duplicate, got %d", w.Code)
	}

	// remove carol again
	w = env.do(t, http.MethodDelete, "/api/chats/"+conv.ID+"/participants/3", aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove participant: status %d body %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/api/chats/"+conv.ID, carolToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 after removal, got %d", w.Code)
	}
}

func TestDeleteAccountOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.signupAndLogin(t, "alice")
	bobToken := env.signupAndLogin(t, "bob")

	w := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"recipient_id": 2,
		"subject":      "bye",
		"body":         "leaving",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/api/account", aliceToken, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete account: status %d body %s", w.Code, w.Body.String())
	}

	// the departed account's messages and notifications are gone
	w = env.do(t, http.MethodGet, "/api/messages/unread/count", bobToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"count":0`)) {
		t.Fatalf("unread count after deletion: status %d body %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodGet, "/api/notifications/unread/count", bobToken, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"count":0`)) {
		t.Fatalf("notification count after deletion: status %d body %s", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", w.Code)
	}
}
