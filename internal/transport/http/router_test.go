package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/iamasit07/chat-presence/internal/repository/memory"
	"github.com/iamasit07/chat-presence/internal/service/presence"
	"go.uber.org/zap"
)

type staticRooms []domain.Room

func (s staticRooms) Rooms() []domain.Room { return s }

type staticReports struct{ report *presence.TickReport }

func (s staticReports) LastReport() *presence.TickReport { return s.report }

func newTestRouter(reports ReportSource) (*gin.Engine, *memory.UserRepo, *memory.SessionRepo) {
	gin.SetMode(gin.TestMode)
	users := memory.NewUserRepo()
	sessions := memory.NewSessionRepo()
	router := NewRouter(RouterConfig{
		AllowedOrigins: []string{"https://chat.example.com"},
		WebSocket:      func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
		Presence:       NewPresenceHandler(reports, users, sessions, staticRooms{{Name: "lobby", Members: []string{"u1"}}}, zap.NewNop()),
		Logger:         zap.NewNop(),
	})
	return router, users, sessions
}

func serve(router *gin.Engine, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	router, _, _ := newTestRouter(staticReports{})
	if rec := serve(router, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRouter_LastTick(t *testing.T) {
	router, _, _ := newTestRouter(staticReports{})
	if rec := serve(router, http.MethodGet, "/api/presence/last-tick", nil); rec.Code != http.StatusNotFound {
		t.Errorf("before first tick: status = %d, want 404", rec.Code)
	}

	report := &presence.TickReport{StartedAt: time.Now().UTC(), WentOffline: 2}
	router, _, _ = newTestRouter(staticReports{report: report})
	rec := serve(router, http.MethodGet, "/api/presence/last-tick", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got presence.TickReport
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.WentOffline != 2 {
		t.Errorf("report = %+v", got)
	}
}

func TestRouter_UserPresence(t *testing.T) {
	router, users, sessions := newTestRouter(staticReports{})
	users.Put(domain.User{ID: "u1", Name: "Alice", Status: domain.StatusInactive, Rooms: []string{"lobby"}})
	sessions.Insert(context.Background(), &domain.ClientSession{ID: "c1", UserID: "u1"})

	rec := serve(router, http.MethodGet, "/api/presence/users/u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "inactive" || body["connectedClients"] != float64(1) {
		t.Errorf("body = %v", body)
	}

	if rec := serve(router, http.MethodGet, "/api/presence/users/nobody", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d", rec.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	router, _, _ := newTestRouter(staticReports{})

	rec := serve(router, http.MethodGet, "/healthz", http.Header{"Origin": {"https://evil.example.com"}})
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign origin status = %d", rec.Code)
	}

	rec = serve(router, http.MethodOptions, "/healthz", http.Header{"Origin": {"https://chat.example.com"}})
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "https://chat.example.com" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	if rec := serve(router, http.MethodGet, "/ws", nil); rec.Code != http.StatusTeapot {
		t.Errorf("ws route status = %d", rec.Code)
	}
}

func TestRouter_Rooms(t *testing.T) {
	router, _, _ := newTestRouter(staticReports{})
	rec := serve(router, http.MethodGet, "/api/presence/rooms", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rooms []domain.Room
	if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 || rooms[0].Name != "lobby" {
		t.Errorf("rooms = %+v", rooms)
	}
}
