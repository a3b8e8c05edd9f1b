package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"smart_ventilation/internal/models"
	"smart_ventilation/internal/service"
)

func doRequest(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestFans_RequireAuth(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}})

	for _, path := range []string{"/api/v1/fans", "/api/v1/fans/1"} {
		w := doRequest(r, http.MethodGet, path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", path, w.Code)
		}
	}

	// malformed header scheme
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/fans", nil)
	req.Header.Set("Authorization", "Basic abc")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer header, got %d", w.Code)
	}
}

func TestFans_List(t *testing.T) {
	registry := &mockRegistry{fans: []models.Fan{
		{ID: 1, UserID: 7, Name: "Kitchen Fan", DeviceID: "dev-1", Status: models.StatusOff},
	}}
	r := newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Registry:      registry,
	})

	w := doRequest(r, http.MethodGet, "/api/v1/fans", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if registry.lastUserID != 7 {
		t.Fatalf("expected caller id 7 from token, got %d", registry.lastUserID)
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if fans, ok := m["fans"].([]any); !ok || len(fans) != 1 {
		t.Fatalf("unexpected body: %v", m)
	}
}

func TestFans_Create(t *testing.T) {
	registry := &mockRegistry{fan: &models.Fan{ID: 9, Name: "Kitchen Fan", DeviceID: "dev-1"}}
	r := newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Registry:      registry,
	})

	w := doRequest(r, http.MethodPost, "/api/v1/fans",
		`{"name":"Kitchen Fan","location":"Kitchen","device_id":"dev-1"}`, "tok")
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if registry.lastCreate.DeviceID != "dev-1" {
		t.Fatalf("unexpected create params: %+v", registry.lastCreate)
	}

	// missing required field → 400 before the service is reached
	registry.lastCreate = service.CreateFanParams{}
	w = doRequest(r, http.MethodPost, "/api/v1/fans", `{"name":"Kitchen Fan"}`, "tok")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", w.Code)
	}
	if registry.lastCreate.Name != "" {
		t.Fatalf("service must not be called on binding failure")
	}
}

func TestFans_CreateDuplicateDevice(t *testing.T) {
	registry := &mockRegistry{err: service.ErrDuplicateDeviceID}
	r := newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Registry:      registry,
	})

	w := doRequest(r, http.MethodPost, "/api/v1/fans",
		`{"name":"Kitchen Fan","location":"Kitchen","device_id":"dev-1"}`, "tok")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate device, got %d", w.Code)
	}
}

func TestFans_GetNotFound(t *testing.T) {
	registry := &mockRegistry{err: service.ErrFanNotFound}
	r := newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Registry:      registry,
	})

	w := doRequest(r, http.MethodGet, "/api/v1/fans/42", "", "tok")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/fans/abc", "", "tok")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", w.Code)
	}
}

func TestFans_Readings(t *testing.T) {
	registry := &mockRegistry{readings: []models.Reading{{ID: 1, FanID: 3, GasLevel: 300}}}
	r := newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Registry:      registry,
	})

	w := doRequest(r, http.MethodGet, "/api/v1/fans/3/readings?limit=25", "", "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if registry.lastFanID != 3 || registry.lastLimit != 25 {
		t.Fatalf("expected fan 3 limit 25, got fan=%d limit=%d", registry.lastFanID, registry.lastLimit)
	}
}

func TestFans_Control(t *testing.T) {
	control := &mockControl{fan: &models.Fan{ID: 3, Status: models.StatusOn}}
	r := newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Control:       control,
	})

	w := doRequest(r, http.MethodPost, "/api/v1/fans/3/control", `{"state":"ON"}`, "tok")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if control.lastUserID != 7 || control.lastFanID != 3 || !control.lastDesired {
		t.Fatalf("unexpected control call: %+v", control)
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["status"] != "ON" {
		t.Fatalf("expected committed status ON, got %v", m["status"])
	}

	// invalid state value
	w = doRequest(r, http.MethodPost, "/api/v1/fans/3/control", `{"state":"MAYBE"}`, "tok")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad state, got %d", w.Code)
	}

	// unowned fan
	control.err = service.ErrFanNotFound
	control.fan = nil
	w = doRequest(r, http.MethodPost, "/api/v1/fans/3/control", `{"state":"OFF"}`, "tok")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unowned fan, got %d", w.Code)
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := doRequest(r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", w.Code)
	}
}
