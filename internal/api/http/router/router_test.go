package router

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/mocks"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/ratelimit"
	"github.com/dtroode/identity-server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(t *testing.T, r *Router) *gin.Engine {
	t.Helper()

	engine, err := r.Register()
	require.NoError(t, err)
	return engine
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]Pinger
		wantCode int
		wantBody string
	}{
		{
			name: "all up",
			checks: map[string]Pinger{
				"database": pingerFunc(func(context.Context) error { return nil }),
			},
			wantCode: http.StatusOK,
			wantBody: `{"success":true,"data":{"status":"ok","checks":{"database":"ok"}}}`,
		},
		{
			name: "redis down",
			checks: map[string]Pinger{
				"database": pingerFunc(func(context.Context) error { return nil }),
				"redis":    pingerFunc(func(context.Context) error { return assert.AnError }),
			},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"success":false,"error":{"code":"UNAVAILABLE","message":"dependency unavailable","details":{"database":"ok","redis":"unavailable"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, New(nil, nil, Limits{}, tt.checks, nil, nil, testutil.MakeNoopLogger()))

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	m := metrics.New()
	m.ObserveOperation("login", metrics.OutcomeOK)

	engine := newTestEngine(t, New(nil, nil, Limits{}, nil, nil, m, testutil.MakeNoopLogger()))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `identity_operations_total{operation="login",outcome="ok"} 1`)
}

func TestRouter_RegisterLimitOnlyCoversRegister(t *testing.T) {
	svc := &mocks.IdentityService{}
	svc.On("Register", mock.Anything, mock.Anything).Return(model.Session{UserID: uuid.New()}, nil).Once()
	svc.On("Logout", mock.Anything, "tok").Return(nil).Twice()

	engine := newTestEngine(t, New(svc, nil, Limits{Register: ratelimit.NewRegistry(1, time.Hour)}, nil, nil, metrics.New(), testutil.MakeNoopLogger()))

	post := func(path, body string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)
		return w.Code
	}

	register := `{"username":"alice","email":"alice@x.com","password":"secret1"}`
	assert.Equal(t, http.StatusCreated, post("/api/auth/register", register))
	assert.Equal(t, http.StatusTooManyRequests, post("/api/auth/register", register))

	assert.Equal(t, http.StatusOK, post("/api/auth/logout", `{"refreshToken":"tok"}`))
	assert.Equal(t, http.StatusOK, post("/api/auth/logout", `{"refreshToken":"tok"}`))

	svc.AssertExpectations(t)
}

func TestRouter_ForwardedForDoesNotSplitBudgets(t *testing.T) {
	tests := []struct {
		name           string
		trustedProxies []string
		wantAccepted   int
		wantBurstKeys  int
	}{
		{name: "no trusted proxies", wantAccepted: 1, wantBurstKeys: 1},
		// The peer is a trusted proxy, so each forwarded address is its own client.
		{name: "peer is a trusted proxy", trustedProxies: []string{"203.0.113.0/24"}, wantAccepted: 5, wantBurstKeys: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mocks.IdentityService{}
			svc.On("Register", mock.Anything, mock.Anything).Return(model.Session{UserID: uuid.New()}, nil)

			burst := ratelimit.NewRegistry(100, time.Hour)
			limits := Limits{Burst: burst, Register: ratelimit.NewRegistry(1, time.Hour)}
			engine := newTestEngine(t, New(svc, nil, limits, nil, tt.trustedProxies, metrics.New(), testutil.MakeNoopLogger()))

			accepted := 0
			for i := range 5 {
				w := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
					strings.NewReader(`{"username":"alice","email":"alice@x.com","password":"secret1"}`))
				req.Header.Set("Content-Type", "application/json")
				req.RemoteAddr = "203.0.113.9:40000"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
				engine.ServeHTTP(w, req)
				if w.Code == http.StatusCreated {
					accepted++
				}
			}

			assert.Equal(t, tt.wantAccepted, accepted)
			assert.Equal(t, tt.wantBurstKeys, burst.Len())
		})
	}
}

func TestRouter_InvalidTrustedProxy(t *testing.T) {
	_, err := New(nil, nil, Limits{}, nil, []string{"not-an-ip"}, nil, testutil.MakeNoopLogger()).Register()
	require.Error(t, err)
}
