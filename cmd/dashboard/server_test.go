package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paramean/targeting/internal/auth"
	"github.com/paramean/targeting/internal/member"
	"github.com/paramean/targeting/internal/shared/config"
	"github.com/paramean/targeting/internal/shared/events"
	"github.com/paramean/targeting/internal/warehouse/warehousetest"
)

type emptyStore struct{}

func (emptyStore) List(context.Context) ([]member.Member, error) { return []member.Member{}, nil }
func (emptyStore) Add(context.Context, member.NewMember) (member.Member, member.RecalcResult, error) {
	return member.Member{}, member.RecalcResult{}, nil
}
func (emptyStore) Delete(context.Context, int64) (bool, member.RecalcResult, error) {
	return false, member.RecalcResult{}, nil
}
func (emptyStore) Settings(context.Context) (member.Thresholds, error) {
	return member.DefaultThresholds, nil
}
func (emptyStore) UpdateSettings(context.Context, member.Thresholds) (member.RecalcResult, error) {
	return member.RecalcResult{}, nil
}
func (emptyStore) Recalculate(context.Context) (member.RecalcResult, error) {
	return member.RecalcResult{}, nil
}

type stubDB struct{ err error }

func (s stubDB) Health(context.Context) error { return s.err }

func testApp(wh *warehousetest.Warehouse, debug bool) *App {
	return &App{
		Config: &config.Config{
			Server: config.ServerConfig{Env: "development", RequestTimeout: 5 * time.Second, DebugEndpoint: debug},
			Auth: config.AuthConfig{
				JWTSecret:      "test-secret",
				Username:       "parameanadmin",
				SessionTTL:     time.Hour,
				CookieName:     "paramean_session",
				LoginPerMinute: 10,
			},
			Warehouse: config.WarehouseConfig{Driver: "postgres", Password: "warehouse-pass"},
		},
		Log:       zap.NewNop(),
		DB:        stubDB{},
		Members:   emptyStore{},
		Warehouse: wh,
		Table:     "FINAL_OUTPUT_TEST_20250511",
		Bus:       events.Nop{},
	}
}

func router(t *testing.T, app *App) http.Handler {
	t.Helper()
	h, err := app.Router()
	require.NoError(t, err)
	return h
}

func request(h http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := request(h, http.MethodPost, "/api/auth", `{"username":"parameanadmin","password":"`+auth.DevPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestHealthIsPublic(t *testing.T) {
	h := router(t, testApp(&warehousetest.Warehouse{}, false))
	rec := request(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestAPIRequiresSession(t *testing.T) {
	h := router(t, testApp(&warehousetest.Warehouse{}, false))

	for _, path := range []string{"/api/members", "/api/settings", "/api/report"} {
		rec := request(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"unauthorized","code":"UNAUTHORIZED"}`, rec.Body.String(), path)
	}
	rec := request(h, http.MethodPost, "/api/targeting", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := login(t, h)
	rec = request(h, http.MethodGet, "/api/members", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDebugEndpointOnlyWhenEnabled(t *testing.T) {
	h := router(t, testApp(&warehousetest.Warehouse{}, false))
	rec := request(h, http.MethodGet, "/api/debug", "", login(t, h))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = router(t, testApp(&warehousetest.Warehouse{}, true))
	rec = request(h, http.MethodGet, "/api/debug", "", login(t, h))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"password_length":14`)
	assert.NotContains(t, rec.Body.String(), "warehouse-pass")
}

func TestReadiness(t *testing.T) {
	h := router(t, testApp(&warehousetest.Warehouse{}, false))
	rec := request(h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ready","warehouse":"ready","events":"ready"}}`, rec.Body.String())

	h = router(t, testApp(&warehousetest.Warehouse{HealthErr: assert.AnError}, false))
	rec = request(h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"warehouse":"not ready"`)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestTargetingThroughRouter(t *testing.T) {
	sess := warehousetest.NewSession()
	h := router(t, testApp(&warehousetest.Warehouse{Session: sess}, false))

	rec := request(h, http.MethodPost, "/api/targeting",
		`{"pmpmMinAdult":250,"pmpmMaxAdult":5000,"pmpmMinChild":100,"pmpmMaxChild":3000}`, login(t, h))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, sess.Released)
	assert.Contains(t, sess.Names(), "step_1")
}
