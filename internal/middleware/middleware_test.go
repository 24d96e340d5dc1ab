package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-booking/internal/config"
	"github.com/iliyamo/event-booking/internal/utils"
)

const secret = "test-secret"

func identityHandler(c echo.Context) error {
	uid, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"uid": uid, "role": Role(c)})
}

func serve(mw echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/x", identityHandler, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuthAcceptsCustomHeaderAndBearer(t *testing.T) {
	tok := tokenFor(t, 42, "CLIENT")

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAuthToken, tok)
	rec := serve(JWTAuth(secret), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":42,"role":"CLIENT"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec = serve(JWTAuth(secret), req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthRejects(t *testing.T) {
	rec := serve(JWTAuth(secret), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing auth token"}`, rec.Body.String())

	other, err := utils.NewAccessToken("another-secret", 1, "ADMIN", 5)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAuthToken, other.Token)
	rec = serve(JWTAuth(secret), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
}

func TestOptionalJWTLetsAnonymousThrough(t *testing.T) {
	rec := serve(OptionalJWT(secret), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":0,"role":""}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAuthToken, "garbage")
	rec = serve(OptionalJWT(secret), req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAuthToken, tokenFor(t, 9, "ORGANIZER"))
	rec = serve(OptionalJWT(secret), req)
	assert.JSONEq(t, `{"uid":9,"role":"ORGANIZER"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/x", identityHandler, JWTAuth(secret), RequireRole("ADMIN"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAuthToken, tokenFor(t, 3, "CLIENT"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderAuthToken, tokenFor(t, 3, "ADMIN"))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheKeyIgnoresQueryOrder(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "evcache", KeyStrategy: "route_query"}
	e := echo.New()
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/events")
		return cacheKeyFrom(cfg, c)
	}
	a := key("/v1/events?page=1&category=music")
	assert.Equal(t, a, key("/v1/events?category=music&page=1"))
	assert.NotEqual(t, a, key("/v1/events?category=sports&page=1"))
	assert.Regexp(t, `^evcache:[0-9a-f]{40}$`, a)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"data":[]}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"data":[]}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestDisabledCacheAndLimiterPassThrough(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil)
	assert.NoError(t, rc.Purge(context.Background()))

	rec := serve(rc.Middleware(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))

	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, RefillInterval: time.Second}, nil)
	rec = serve(limiter.Middleware(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(limiter.Auth(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var none *RateLimiter
	rec = serve(none.Middleware(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:guest:route:POST /v1/bookings", buildRateKey(cfg, c))

	c.Set(ctxUserID, uint64(17))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:17", buildRateKey(cfg, c))
}
