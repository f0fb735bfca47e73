package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"

	"jammertime/internal/aggregate"
	"jammertime/internal/models"
	"jammertime/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockEventLog struct {
	importReg  models.Registry
	importErr  error
	importBody string

	resp       []models.MachineEvent
	err        error
	lastFilter service.LogFilter

	reg    models.Registry
	regErr error
}

func (m *mockEventLog) Import(ctx context.Context, r io.Reader) (models.Registry, error) {
	b, _ := io.ReadAll(r)
	m.importBody = string(b)
	return m.importReg, m.importErr
}
func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.MachineEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}
func (m *mockEventLog) Registry(ctx context.Context) (models.Registry, error) {
	return m.reg, m.regErr
}

type mockSchedules struct {
	created    models.Schedule
	createErr  error
	lastName   string
	lastFormat service.ScheduleFormat

	get    models.Schedule
	getErr error
	list   []models.Schedule
}

func (m *mockSchedules) Create(ctx context.Context, name string, format service.ScheduleFormat, r io.Reader) (models.Schedule, error) {
	m.lastName = name
	m.lastFormat = format
	return m.created, m.createErr
}
func (m *mockSchedules) Get(ctx context.Context, id string) (models.Schedule, error) {
	return m.get, m.getErr
}
func (m *mockSchedules) List(ctx context.Context) ([]models.Schedule, error) {
	return m.list, nil
}

// mockRuns returns the runs in seq on successive Get calls, repeating the
// last one.
type mockRuns struct {
	mu sync.Mutex

	started  models.Run
	startErr error
	lastReq  service.RunRequest

	seq    []models.Run
	getN   int
	getErr error

	sum    aggregate.Summary
	sumErr error

	cancelErr  error
	canceledID string

	list      []models.Run
	lastLimit int
}

func (m *mockRuns) Start(ctx context.Context, req service.RunRequest) (models.Run, error) {
	m.lastReq = req
	return m.started, m.startErr
}
func (m *mockRuns) Get(ctx context.Context, id string) (models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return models.Run{}, m.getErr
	}
	i := m.getN
	if i >= len(m.seq) {
		i = len(m.seq) - 1
	}
	m.getN++
	return m.seq[i], nil
}
func (m *mockRuns) Summary(ctx context.Context, id string) (aggregate.Summary, error) {
	return m.sum, m.sumErr
}
func (m *mockRuns) Cancel(ctx context.Context, id string) error {
	m.canceledID = id
	return m.cancelErr
}
func (m *mockRuns) List(ctx context.Context, limit int) ([]models.Run, error) {
	m.lastLimit = limit
	return m.list, nil
}
func (m *mockRuns) Close() {}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
