package handlers

import (
	"context"
	"net/http"
	"time"

	"uvchamber/internal/control"
	"uvchamber/internal/models"
	"uvchamber/internal/profile"
	"uvchamber/internal/repository"
	"uvchamber/internal/service"

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

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockChamber struct {
	selectModeErr error
	loadErr       error
	startErr      error
	standardErr   error
	pauseErr      error
	resumeErr     error
	stopErr       error
	ackErr        error

	lastMode     string
	lastLoadName string
	lastInline   *profile.Profile
	lastStandard service.StandardParams

	startCalls    int
	standardCalls int
	pauseCalls    int
	resumeCalls   int
	stopCalls     int
	ackCalls      int
}

func (m *mockChamber) SelectMode(ctx context.Context, mode string) error {
	m.lastMode = mode
	return m.selectModeErr
}
func (m *mockChamber) LoadProfile(ctx context.Context, p profile.Profile) error {
	m.lastInline = &p
	return m.loadErr
}
func (m *mockChamber) LoadProfileByName(ctx context.Context, name string) error {
	m.lastLoadName = name
	return m.loadErr
}
func (m *mockChamber) Start(ctx context.Context) error {
	m.startCalls++
	return m.startErr
}
func (m *mockChamber) StartStandard(ctx context.Context, p service.StandardParams) error {
	m.standardCalls++
	m.lastStandard = p
	return m.standardErr
}
func (m *mockChamber) Pause(ctx context.Context) error {
	m.pauseCalls++
	return m.pauseErr
}
func (m *mockChamber) Resume(ctx context.Context) error {
	m.resumeCalls++
	return m.resumeErr
}
func (m *mockChamber) Stop(ctx context.Context) error {
	m.stopCalls++
	return m.stopErr
}
func (m *mockChamber) AcknowledgeFault(ctx context.Context) error {
	m.ackCalls++
	return m.ackErr
}

type mockLibrary struct {
	saved      profile.Profile
	saveErr    error
	got        profile.Profile
	getErr     error
	list       []models.ProfileSummary
	listErr    error
	deleteErr  error
	imported   profile.Profile
	importErr  error
	exported   []byte
	exportErr  error
	lastSaved  *profile.Profile
	lastName   string
	lastImport []byte
}

func (m *mockLibrary) Save(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	m.lastSaved = &p
	return m.saved, m.saveErr
}
func (m *mockLibrary) Get(ctx context.Context, name string) (profile.Profile, error) {
	m.lastName = name
	return m.got, m.getErr
}
func (m *mockLibrary) List(ctx context.Context) ([]models.ProfileSummary, error) {
	return m.list, m.listErr
}
func (m *mockLibrary) Delete(ctx context.Context, name string) error {
	m.lastName = name
	return m.deleteErr
}
func (m *mockLibrary) Import(ctx context.Context, doc []byte) (profile.Profile, error) {
	m.lastImport = doc
	return m.imported, m.importErr
}
func (m *mockLibrary) Export(ctx context.Context, name string) ([]byte, error) {
	m.lastName = name
	return m.exported, m.exportErr
}

type mockMonitoring struct {
	status control.Status
	err    error
}

func (m *mockMonitoring) Status(ctx context.Context) (control.Status, error) {
	return m.status, m.err
}

type mockEventLog struct {
	resp     []models.ChamberEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ChamberEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// notFoundLibrary returns ErrNotFound from every lookup.
func notFoundLibrary() *mockLibrary {
	return &mockLibrary{
		getErr:    repository.ErrNotFound,
		deleteErr: repository.ErrNotFound,
		exportErr: repository.ErrNotFound,
	}
}

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
