package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/uptask/internal/config"
	"github.com/huangang/uptask/internal/middleware"
	"github.com/huangang/uptask/internal/models"
	"github.com/huangang/uptask/internal/realtime"
	"github.com/huangang/uptask/internal/services"
	"github.com/huangang/uptask/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handlers-test-secret")
}

type captureMail struct {
	mu   sync.Mutex
	sent []*services.Mail
}

func (q *captureMail) Enqueue(_ context.Context, mail *services.Mail) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, mail)
	return nil
}

func (q *captureMail) IsAsync() bool { return false }
func (q *captureMail) Close() error  { return nil }

type testApp struct {
	db     *gorm.DB
	engine *gin.Engine
	router *realtime.Router
	mail   *captureMail
}

func newTestApp(t *testing.T, authorizeJoin bool) *testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	app := &testApp{db: db, router: realtime.NewRouter(), mail: &captureMail{}}

	projects := services.NewProjectService(db)
	collaboration := services.NewCollaborationService(db, app.router)
	authHandler := NewAuthHandler(services.NewAuthService(db, &config.JWTConfig{Secret: "handlers-test-secret", ExpireHour: 24}, app.mail, "http://localhost:5173"))
	projectHandler := NewProjectHandler(projects, collaboration)
	taskHandler := NewTaskHandler(services.NewTaskService(db, projects), collaboration)
	rt := &config.RealtimeConfig{AuthorizeJoin: authorizeJoin, SendBuffer: 16, PingSeconds: 30}
	realtimeHandler := NewRealtimeHandler(app.router, projects, rt, "*")

	r := gin.New()
	r.GET("/health", NewHealthHandler(db, app.mail, app.router).CheckHealth)
	api := r.Group("/api")
	users := api.Group("/users")
	users.POST("", authHandler.Register)
	users.POST("/login", authHandler.Login)
	users.GET("/confirm/:token", authHandler.Confirm)
	users.POST("/forgot-password", authHandler.ForgotPassword)
	users.GET("/forgot-password/:token", authHandler.CheckResetToken)
	users.POST("/forgot-password/:token", authHandler.ResetPassword)
	users.GET("/profile", middleware.AuthRequired(), authHandler.Profile)

	stream := api.Group("", middleware.StreamAuth())
	stream.GET("/realtime", realtimeHandler.ServeWebSocket)
	stream.GET("/events/projects/:id", realtimeHandler.StreamProject)

	protected := api.Group("", middleware.AuthRequired())
	protected.GET("/projects", projectHandler.List)
	protected.POST("/projects", projectHandler.Create)
	protected.GET("/projects/:id", projectHandler.GetByID)
	protected.PUT("/projects/:id", projectHandler.Update)
	protected.DELETE("/projects/:id", projectHandler.Delete)
	protected.POST("/projects/colaboradores", projectHandler.SearchCollaborator)
	protected.POST("/projects/colaboradores/:id", projectHandler.AddCollaborator)
	protected.POST("/projects/eliminar-colaborador/:id", projectHandler.RemoveCollaborator)
	protected.POST("/tasks", taskHandler.Create)
	protected.GET("/tasks/:id", taskHandler.GetByID)
	protected.PUT("/tasks/:id", taskHandler.Update)
	protected.DELETE("/tasks/:id", taskHandler.Delete)
	protected.POST("/tasks/state/:id", taskHandler.Toggle)

	app.engine = r
	return app
}

var (
	hashOnce sync.Once
	testHash string
)

// user stores a confirmed account and returns it with a valid token.
func (a *testApp) user(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	hashOnce.Do(func() {
		h, err := utils.HashPassword("secret123")
		if err != nil {
			panic(err)
		}
		testHash = h
	})

	u := models.User{Name: name, Email: strings.ToLower(name) + "@example.com", Password: testHash, Confirmed: true}
	if err := a.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := utils.GenerateToken(u.ID, u.Email, u.Name, 1)
	if err != nil {
		t.Fatal(err)
	}
	return &u, token
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: body is not JSON: %q", method, path, w.Body.String())
		}
	}
	return w, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, expected %d (body %s)", w.Code, status, w.Body.String())
	}
}
