package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bingoduel/backend/internal/account"
	"bingoduel/backend/internal/config"
	"bingoduel/backend/internal/coordinator"
	"bingoduel/backend/internal/hub"
	"bingoduel/backend/internal/models"
	"bingoduel/backend/internal/repository"
	"bingoduel/backend/internal/room"
	"bingoduel/backend/internal/solo"
)

const adminPassword = "let-me-in"

func newTestRouter(t *testing.T, startingTokens int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prev := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "handler-test", TokenTTL: time.Hour}
	t.Cleanup(func() { config.AppConfig = prev })

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	h := hub.NewHub()
	accounts := account.NewService(repository.NewInMemoryLedgerStore(), startingTokens)
	soloGames := solo.NewManager(accounts, h, solo.ManagerOptions{})
	t.Cleanup(soloGames.Close)

	handler := &Handler{
		Rooms:             room.NewService(repository.NewInMemoryRoomStore(), h, room.Options{TurnTimeLimit: 30 * time.Second}),
		Solo:              soloGames,
		Accounts:          accounts,
		AdminPasswordHash: string(hash),
		AllowedOrigins:    []string{"*"},
	}

	r := gin.New()
	r.GET("/ping", handler.Ping)
	handler.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func newSession(t *testing.T, r http.Handler, name string) SessionResponse {
	t.Helper()
	w := call(t, r, http.MethodPost, "/api/v1/session", "", SessionInput{Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SessionResponse](t, w)
}

func TestPing(t *testing.T) {
	r := newTestRouter(t, 5)
	w := call(t, r, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestSession(t *testing.T) {
	r := newTestRouter(t, 5)

	w := call(t, r, http.MethodPost, "/api/v1/session", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	first := newSession(t, r, "Ada")
	assert.NotEmpty(t, first.PlayerID)
	assert.Equal(t, 5, first.Tokens)

	w = call(t, r, http.MethodPost, "/api/v1/session", first.Token, SessionInput{Name: "Ada L."})
	require.Equal(t, http.StatusCreated, w.Code)
	renewed := decode[SessionResponse](t, w)
	assert.Equal(t, first.PlayerID, renewed.PlayerID)
	assert.Equal(t, "Ada L.", renewed.Name)

	assert.Equal(t, http.StatusUnauthorized, call(t, r, http.MethodGet, "/api/v1/account", "", nil).Code)
}

func TestRoomLifecycle(t *testing.T) {
	r := newTestRouter(t, 5)
	ada := newSession(t, r, "Ada")
	grace := newSession(t, r, "Grace")

	w := call(t, r, http.MethodPost, "/api/v1/rooms", ada.Token, RoomInput{Name: "Ada"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[RoomResponse](t, w)
	code := created.Room.ID
	assert.Equal(t, models.StatusWaiting, created.Room.Status)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/join", ada.Token, RoomInput{Name: "Ada"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cannot join your own room")

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+strings.ToLower(code)+"/join", grace.Token, RoomInput{Name: "Grace"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	joined := decode[RoomResponse](t, w)
	assert.Equal(t, models.StatusPlaying, joined.Room.Status)
	assert.False(t, joined.IsMyTurn)
	assert.Positive(t, joined.TimeLeft)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/call", grace.Token, NumberInput{Number: 37})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/call", ada.Token, NumberInput{Number: 37})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int{37}, decode[RoomResponse](t, w).Room.CalledNumbers)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/call", grace.Token, NumberInput{Number: 37})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/mark", grace.Token, NumberInput{Number: 12})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/mark", grace.Token, NumberInput{Number: 37})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{37}, decode[RoomResponse](t, w).Room.Opponent.MarkedNumbers)

	w = call(t, r, http.MethodGet, "/api/v1/rooms/"+code+"/suggest", grace.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, 37, decode[NumberInput](t, w).Number)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/claim", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	finished := decode[RoomResponse](t, w)
	assert.Equal(t, models.StatusFinished, finished.Room.Status)
	assert.Equal(t, ada.PlayerID, *finished.Room.Winner)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/leave", ada.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(t, r, http.MethodGet, "/api/v1/rooms/"+code, grace.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSoloFlow(t *testing.T) {
	r := newTestRouter(t, 1)
	ada := newSession(t, r, "Ada")

	w := call(t, r, http.MethodGet, "/api/v1/solo", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, solo.PhaseIdle, decode[solo.State](t, w).Phase)

	w = call(t, r, http.MethodPost, "/api/v1/solo/mark", ada.Token, NumberInput{Number: 3})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(t, r, http.MethodPost, "/api/v1/solo/start", ada.Token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	started := decode[solo.State](t, w)
	assert.Equal(t, solo.PhaseActive, started.Phase)
	assert.Equal(t, 0, started.Tokens)

	w = call(t, r, http.MethodPost, "/api/v1/solo/pause", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[solo.State](t, w).IsPaused)

	w = call(t, r, http.MethodPost, "/api/v1/solo/claim", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	claim := decode[ClaimResponse](t, w)
	assert.False(t, claim.Won)
	assert.True(t, claim.State.ClaimRejected)

	w = call(t, r, http.MethodPost, "/api/v1/solo/start", ada.Token, nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient tokens")
}

func TestAdminCreditAndLedger(t *testing.T) {
	r := newTestRouter(t, 1)
	ada := newSession(t, r, "Ada")

	w := call(t, r, http.MethodPost, "/api/v1/admin/login", "", AdminLoginInput{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, r, http.MethodPost, "/api/v1/admin/login", "", AdminLoginInput{Password: adminPassword})
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := decode[map[string]string](t, w)["token"]
	require.NotEmpty(t, adminToken)

	path := "/api/v1/admin/accounts/" + ada.PlayerID + "/credit"
	w = call(t, r, http.MethodPost, path, ada.Token, CreditInput{Amount: 3})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodPost, path, adminToken, CreditInput{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodPost, path, adminToken, CreditInput{Amount: 3, Reason: "bug bounty"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4, decode[AccountResponse](t, w).Tokens)

	w = call(t, r, http.MethodGet, "/api/v1/account", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decode[AccountResponse](t, w).Tokens)

	for _, path := range []string{"/api/v1/account", "/api/v1/solo", "/api/v1/rooms/ABC123"} {
		w = call(t, r, http.MethodGet, path, adminToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
	w = call(t, r, http.MethodPost, "/api/v1/rooms", adminToken, RoomInput{Name: "Root"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, http.MethodGet, "/api/v1/account/ledger?page=1&limit=1", ada.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[PaginatedLedgerResponse](t, w)
	assert.Equal(t, int64(2), page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, models.ReasonAdminCredit, page.Data[0].Reason)
}

func TestRoomEventsStream(t *testing.T) {
	r := newTestRouter(t, 5)
	srv := httptest.NewServer(r)
	defer srv.Close()
	ada := newSession(t, r, "Ada")

	w := call(t, r, http.MethodPost, "/api/v1/rooms", ada.Token, RoomInput{Name: "Ada"})
	require.Equal(t, http.StatusCreated, w.Code)
	code := decode[RoomResponse](t, w).Room.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/rooms/"+code+"/events?token="+ada.Token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && name != "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	assert.Equal(t, hub.EventRoomUpdated, name)
	assert.Contains(t, data, `"status":"waiting"`)

	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/leave", ada.Token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	name, _ = readEvent()
	assert.Equal(t, hub.EventRoomDeleted, name)
}

func TestRoomSocket(t *testing.T) {
	r := newTestRouter(t, 5)
	srv := httptest.NewServer(r)
	defer srv.Close()
	ada := newSession(t, r, "Ada")
	grace := newSession(t, r, "Grace")

	w := call(t, r, http.MethodPost, "/api/v1/rooms", ada.Token, RoomInput{Name: "Ada"})
	require.Equal(t, http.StatusCreated, w.Code)
	code := decode[RoomResponse](t, w).Room.ID
	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/join", grace.Token, RoomInput{Name: "Grace"})
	require.Equal(t, http.StatusOK, w.Code)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rooms/" + code + "/ws?token=" + ada.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	readUntil := func(match func(coordinator.View) bool) coordinator.View {
		for {
			var view coordinator.View
			require.NoError(t, conn.ReadJSON(&view))
			if match(view) {
				return view
			}
		}
	}

	view := readUntil(func(v coordinator.View) bool { return v.Room != nil })
	assert.True(t, view.IsMyTurn)
	assert.Equal(t, ada.PlayerID, view.Me.ID)

	require.NoError(t, conn.WriteJSON(socketAction{Action: "call", Number: 9}))
	view = readUntil(func(v coordinator.View) bool { return v.Room != nil && !v.Pending && len(v.Room.CalledNumbers) == 1 })
	assert.Equal(t, []int{9}, view.Room.CalledNumbers)
	assert.False(t, view.IsMyTurn)

	require.NoError(t, conn.WriteJSON(socketAction{Action: "call", Number: 10}))
	view = readUntil(func(v coordinator.View) bool { return v.Error != "" })
	assert.Contains(t, view.Error, "not your turn")
}

func TestStreamsEndWithServerContext(t *testing.T) {
	r := newTestRouter(t, 5)
	base, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	srv := httptest.NewUnstartedServer(r)
	srv.Config.BaseContext = func(net.Listener) context.Context { return base }
	srv.Start()
	defer srv.Close()

	ada := newSession(t, r, "Ada")
	grace := newSession(t, r, "Grace")
	w := call(t, r, http.MethodPost, "/api/v1/rooms", ada.Token, RoomInput{Name: "Ada"})
	require.Equal(t, http.StatusCreated, w.Code)
	code := decode[RoomResponse](t, w).Room.ID
	w = call(t, r, http.MethodPost, "/api/v1/rooms/"+code+"/join", grace.Token, RoomInput{Name: "Grace"})
	require.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/rooms/"+code+"/events?token="+ada.Token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "event:"), line)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rooms/" + code + "/ws?token=" + grace.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var view coordinator.View
	require.NoError(t, conn.ReadJSON(&view))

	stopServer()

	_, err = io.ReadAll(reader)
	assert.NoError(t, err, "event stream ends instead of timing out")

	var readErr error
	for readErr == nil {
		_, _, readErr = conn.ReadMessage()
	}
	var netErr net.Error
	assert.False(t, errors.As(readErr, &netErr) && netErr.Timeout(), "socket closes instead of timing out: %v", readErr)
}
