package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"uvchamber/internal/control"
	"uvchamber/internal/profile"
	"uvchamber/internal/repository"
	"uvchamber/internal/service"

	"github.com/gin-gonic/gin"
)

func doRequest(r http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func runningStatus() control.Status {
	return control.Status{
		State:       control.StateRunning,
		Mode:        control.ModeCustom,
		Interlock:   control.InterlockClosed,
		Indicator:   control.IndicatorActive,
		Intensity:   60,
		ElapsedMs:   1500,
		RemainingMs: 8500,
		Profile:     "cure-a",
		DoseMJ:      90,
	}
}

func TestChamberHandlers_CommandFlow(t *testing.T) {
	ch := &mockChamber{}
	s := &service.Service{
		Authorization: &mockAuth{parseID: 7},
		Chamber:       ch,
		Monitoring:    &mockMonitoring{status: runningStatus()},
	}
	r := newTestRouter(s)

	// Commands require auth → 401 without header
	w := doRequest(r, http.MethodPost, "/api/v1/chamber/start", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	// POST /mode → 200, passes normalized-at-service mode string through
	w = doRequest(r, http.MethodPost, "/api/v1/chamber/mode", `{"mode":"CUSTOM"}`, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("mode status=%d, body=%s", w.Code, w.Body.String())
	}
	if ch.lastMode != "CUSTOM" {
		t.Fatalf("SelectMode got %q", ch.lastMode)
	}
	var modeResp struct {
		Status string         `json:"status"`
		Mode   string         `json:"mode"`
		State  control.Status `json:"state"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &modeResp)
	if modeResp.Status != statusModeSet || modeResp.Mode != "CUSTOM" {
		t.Fatalf("bad mode response: %+v", modeResp)
	}
	if modeResp.State.Profile != "cure-a" {
		t.Fatalf("state missing/invalid in response: %+v", modeResp.State)
	}

	// POST /start → 200 and counter
	w = doRequest(r, http.MethodPost, "/api/v1/chamber/start", "", "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("start status=%d, body=%s", w.Code, w.Body.String())
	}
	if ch.startCalls != 1 {
		t.Fatalf("expected Start to be called once, got %d", ch.startCalls)
	}

	// POST /pause, /resume, /stop, /ack-fault → 200 and counters
	for _, tc := range []struct {
		path  string
		calls *int
	}{
		{"/api/v1/chamber/pause", &ch.pauseCalls},
		{"/api/v1/chamber/resume", &ch.resumeCalls},
		{"/api/v1/chamber/stop", &ch.stopCalls},
		{"/api/v1/chamber/ack-fault", &ch.ackCalls},
	} {
		w = doRequest(r, http.MethodPost, tc.path, "", "valid")
		if w.Code != http.StatusOK {
			t.Fatalf("%s status=%d, body=%s", tc.path, w.Code, w.Body.String())
		}
		if *tc.calls != 1 {
			t.Fatalf("%s calls=%d, want 1", tc.path, *tc.calls)
		}
	}
}

func TestChamberHandlers_LoadProfile(t *testing.T) {
	ch := &mockChamber{}
	s := &service.Service{
		Authorization: &mockAuth{},
		Chamber:       ch,
		Monitoring:    &mockMonitoring{status: runningStatus()},
	}
	r := newTestRouter(s)

	// By library name
	w := doRequest(r, http.MethodPost, "/api/v1/chamber/load", `{"name":"cure-a"}`, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("load by name status=%d, body=%s", w.Code, w.Body.String())
	}
	if ch.lastLoadName != "cure-a" {
		t.Fatalf("LoadProfileByName got %q", ch.lastLoadName)
	}

	// Inline document
	inline := `{"profile":{"name":"adhoc","entries":[{"kind":"constant","start_intensity":30,"duration_ms":2000}]}}`
	w = doRequest(r, http.MethodPost, "/api/v1/chamber/load", inline, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("load inline status=%d, body=%s", w.Code, w.Body.String())
	}
	if ch.lastInline == nil || ch.lastInline.Name != "adhoc" || len(ch.lastInline.Entries) != 1 {
		t.Fatalf("LoadProfile got %+v", ch.lastInline)
	}

	// Neither or both → 400
	for _, body := range []string{
		`{}`,
		`{"name":"x","profile":{"name":"y"}}`,
	} {
		w = doRequest(r, http.MethodPost, "/api/v1/chamber/load", body, "valid")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d, want 400", body, w.Code)
		}
	}
}

func TestChamberHandlers_StandardRun(t *testing.T) {
	ch := &mockChamber{}
	s := &service.Service{
		Authorization: &mockAuth{},
		Chamber:       ch,
		Monitoring:    &mockMonitoring{status: runningStatus()},
	}
	r := newTestRouter(s)

	// Explicit params pass through
	w := doRequest(r, http.MethodPost, "/api/v1/chamber/standard", `{"duration_ms":5000,"intensity_pct":75}`, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("standard status=%d, body=%s", w.Code, w.Body.String())
	}
	if ch.lastStandard.DurationMs != 5000 || ch.lastStandard.IntensityPct != 75 {
		t.Fatalf("wrong standard params: %+v", ch.lastStandard)
	}

	// Empty body → zero params, service applies defaults
	w = doRequest(r, http.MethodPost, "/api/v1/chamber/standard", "", "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("standard empty body status=%d, body=%s", w.Code, w.Body.String())
	}
	if ch.standardCalls != 2 {
		t.Fatalf("standardCalls=%d, want 2", ch.standardCalls)
	}
	if ch.lastStandard != (service.StandardParams{}) {
		t.Fatalf("empty body must pass zero params, got %+v", ch.lastStandard)
	}
}

func TestChamberHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		prep     func(ch *mockChamber)
		method   string
		path     string
		body     string
		wantCode int
		wantKey  string // value of "code" in the response, "" to skip
	}{
		{
			name:     "reject maps to 409",
			prep:     func(ch *mockChamber) { ch.startErr = &control.Reject{Code: control.RejectNotIdle, Msg: "start requires idle"} },
			method:   http.MethodPost,
			path:     "/api/v1/chamber/start",
			wantCode: http.StatusConflict,
			wantKey:  control.RejectNotIdle,
		},
		{
			name:     "interlock reject maps to 409",
			prep:     func(ch *mockChamber) { ch.resumeErr = &control.Reject{Code: control.RejectInterlockOpen, Msg: "lid is open"} },
			method:   http.MethodPost,
			path:     "/api/v1/chamber/resume",
			wantCode: http.StatusConflict,
			wantKey:  control.RejectInterlockOpen,
		},
		{
			name:     "invalid mode maps to 400",
			prep:     func(ch *mockChamber) { ch.selectModeErr = &control.Reject{Code: control.RejectInvalidMode, Msg: `unknown mode "TURBO"`} },
			method:   http.MethodPost,
			path:     "/api/v1/chamber/mode",
			body:     `{"mode":"TURBO"}`,
			wantCode: http.StatusBadRequest,
			wantKey:  control.RejectInvalidMode,
		},
		{
			name: "validation error maps to 422",
			prep: func(ch *mockChamber) {
				ch.loadErr = &profile.ValidationError{Code: "intensity_range", Path: "entries[0]", Detail: "intensity 150.00% outside 0..100"}
			},
			method:   http.MethodPost,
			path:     "/api/v1/chamber/load",
			body:     `{"name":"bad"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantKey:  "intensity_range",
		},
		{
			name:     "missing profile maps to 404",
			prep:     func(ch *mockChamber) { ch.loadErr = repository.ErrNotFound },
			method:   http.MethodPost,
			path:     "/api/v1/chamber/load",
			body:     `{"name":"ghost"}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown error maps to 500",
			prep:     func(ch *mockChamber) { ch.stopErr = errors.New("db down") },
			method:   http.MethodPost,
			path:     "/api/v1/chamber/stop",
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := &mockChamber{}
			tc.prep(ch)
			s := &service.Service{
				Authorization: &mockAuth{},
				Chamber:       ch,
				Monitoring:    &mockMonitoring{status: runningStatus()},
			}
			r := newTestRouter(s)

			w := doRequest(r, tc.method, tc.path, tc.body, "valid")
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantKey != "" {
				var out struct {
					Code string `json:"code"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &out)
				if out.Code != tc.wantKey {
					t.Fatalf("code=%q, want %q (body=%s)", out.Code, tc.wantKey, w.Body.String())
				}
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{},
		Monitoring:    &mockMonitoring{status: runningStatus()},
	}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/status", "", "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st control.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.State != control.StateRunning || st.RemainingMs != 8500 || st.DoseMJ != 90 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

type fakeSimDoor struct {
	closed      bool
	sensorFault bool
	setCalls    int
}

func (f *fakeSimDoor) SetDoor(closed bool) {
	f.closed = closed
	f.setCalls++
}
func (f *fakeSimDoor) SetSensorFault(fault bool) {
	f.sensorFault = fault
}

func TestDevDoorEndpoint(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{},
		Monitoring:    &mockMonitoring{status: runningStatus()},
	}

	// Without a sim door the route does not exist.
	r := newTestRouter(s)
	w := doRequest(r, http.MethodPost, "/api/v1/dev/door", `{"closed":false}`, "valid")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without sim door, got %d", w.Code)
	}

	// With one attached the lid can be driven.
	gin.SetMode(gin.TestMode)
	door := &fakeSimDoor{closed: true}
	h := NewHandler(s, nil)
	h.AttachSimDoor(door)
	r = h.InitRoutes()

	w = doRequest(r, http.MethodPost, "/api/v1/dev/door", `{"closed":false}`, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("dev door status=%d, body=%s", w.Code, w.Body.String())
	}
	if door.closed || door.setCalls != 1 {
		t.Fatalf("door not driven: %+v", door)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/dev/door", `{"sensor_fault":true}`, "valid")
	if w.Code != http.StatusOK {
		t.Fatalf("sensor fault status=%d, body=%s", w.Code, w.Body.String())
	}
	if !door.sensorFault {
		t.Fatalf("sensor fault not injected: %+v", door)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/dev/door", `{}`, "valid")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body status=%d, want 400", w.Code)
	}
}
