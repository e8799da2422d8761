package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit_Global(t *testing.T) {
	api := newAPIWith(t, Options{RateLimit: 3, RateWindow: time.Hour})

	for range 3 {
		status, _ := api.do(http.MethodGet, "/nope", "", nil)
		require.Equal(t, http.StatusNotFound, status)
	}
	status, out := api.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "too many requests, please try again later", out["error"])

	resp, err := http.Get(api.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1200", resp.Header.Get("Retry-After"))
}

func TestRateLimit_Login(t *testing.T) {
	api := newAPIWith(t, Options{LoginRateLimit: 2, RateWindow: time.Hour})
	api.register("limited")
	creds := map[string]string{"identifier": "limited", "password": "wrong"}

	for range 2 {
		status, _ := api.do(http.MethodPost, "/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, out := api.do(http.MethodPost, "/auth/login", "", map[string]string{"identifier": "limited", "password": "secret1"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "too many login attempts, please try again later", out["error"])

	// Other routes keep working.
	api.register("another")
	status, _ = api.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIPLimiter(t *testing.T) {
	assert.Nil(t, newIPLimiter(0, time.Minute, "off"))
	assert.Nil(t, newIPLimiter(5, 0, "off"))

	var disabled *ipLimiter
	called := false
	disabled.wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)

	l := newIPLimiter(2, time.Minute, "slow down")
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"), "buckets are per IP")

	clock = clock.Add(31 * time.Second)
	assert.True(t, l.allow("10.0.0.1"), "one token refills every half minute")
	assert.False(t, l.allow("10.0.0.1"))

	clock = clock.Add(5 * time.Minute)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Len(t, l.visitors, 1, "idle buckets are dropped")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(r))
	r.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", clientIP(r))
	r.RemoteAddr = "unix"
	assert.Equal(t, "unix", clientIP(r))
}
