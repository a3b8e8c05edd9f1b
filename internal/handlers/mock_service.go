package handlers

import (
	"context"

	"smart_ventilation/internal/models"
	"smart_ventilation/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int64
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int64
	parseErr      error

	lastSignUpEmail string
	lastGenEmail    string
	lastParseToken  string
}

func (m *mockAuth) SignUp(ctx context.Context, name, email, password string) (int64, error) {
	m.lastSignUpEmail = email
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, email, password string) (string, error) {
	m.lastGenEmail = email
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int64, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockIngest struct {
	update      *models.FanUpdate
	err         error
	lastRelay   service.RelayPayload
	lastDirect  service.DirectReport
	lastEvent   models.TelemetryEvent
	relayCalls  int
	directCalls int
	eventCalls  int
}

func (m *mockIngest) IngestRelay(ctx context.Context, p service.RelayPayload) (*models.FanUpdate, error) {
	m.relayCalls++
	m.lastRelay = p
	return m.update, m.err
}
func (m *mockIngest) IngestDirect(ctx context.Context, p service.DirectReport) (*models.FanUpdate, error) {
	m.directCalls++
	m.lastDirect = p
	return m.update, m.err
}
func (m *mockIngest) IngestEvent(ctx context.Context, ev models.TelemetryEvent) (*models.FanUpdate, error) {
	m.eventCalls++
	m.lastEvent = ev
	return m.update, m.err
}

type mockControl struct {
	fan         *models.Fan
	err         error
	lastUserID  int64
	lastFanID   int64
	lastDesired bool
	calls       int
}

func (m *mockControl) SetState(ctx context.Context, userID, fanID int64, desired bool) (*models.Fan, error) {
	m.calls++
	m.lastUserID = userID
	m.lastFanID = fanID
	m.lastDesired = desired
	return m.fan, m.err
}

type mockRegistry struct {
	fan      *models.Fan
	fans     []models.Fan
	readings []models.Reading
	err      error

	lastCreate service.CreateFanParams
	lastUserID int64
	lastFanID  int64
	lastLimit  int
}

func (m *mockRegistry) Create(ctx context.Context, userID int64, p service.CreateFanParams) (*models.Fan, error) {
	m.lastUserID = userID
	m.lastCreate = p
	return m.fan, m.err
}
func (m *mockRegistry) List(ctx context.Context, userID int64) ([]models.Fan, error) {
	m.lastUserID = userID
	return m.fans, m.err
}
func (m *mockRegistry) Get(ctx context.Context, userID, fanID int64) (*models.Fan, error) {
	m.lastUserID = userID
	m.lastFanID = fanID
	if m.err != nil {
		return nil, m.err
	}
	return m.fan, nil
}
func (m *mockRegistry) Readings(ctx context.Context, userID, fanID int64, limit int) ([]models.Reading, error) {
	m.lastUserID = userID
	m.lastFanID = fanID
	m.lastLimit = limit
	return m.readings, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	if s.Hub == nil {
		s.Hub = service.NewHub()
	}
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
