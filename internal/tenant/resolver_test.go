package tenant_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-promo/internal/tenant"
)

func TestResolve(t *testing.T) {
	r := tenant.NewResolver("", "shop.example", "")
	cases := []struct {
		name   string
		host   string
		header string
		want   string
	}{
		{name: "header wins", host: "globex.shop.example", header: " acme ", want: "acme"},
		{name: "subdomain", host: "globex.shop.example:8443", want: "globex"},
		{name: "root domain", host: "shop.example"},
		{name: "foreign domain", host: "globex.other.example"},
		{name: "ip address", host: "127.0.0.1:8080"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tc.host
			if tc.header != "" {
				req.Header.Set(tenant.DefaultHeader, tc.header)
			}
			require.Equal(t, tc.want, r.Resolve(req))
		})
	}
}

func TestMiddlewareFallsBackToDefault(t *testing.T) {
	var got string
	h := tenant.NewResolver("X-Shop", "", "main").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = tenant.From(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "localhost"
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "main", got)

	req.Header.Set("X-Shop", "acme")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "acme", got)
}

func TestRequire(t *testing.T) {
	h := tenant.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "TENANT_REQUIRED")

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	h.ServeHTTP(rr, req.WithContext(tenant.WithTenant(req.Context(), "acme")))
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestContextHelpers(t *testing.T) {
	_, ok := tenant.From(context.Background())
	require.False(t, ok)
	_, ok = tenant.From(tenant.WithTenant(context.Background(), "  "))
	require.False(t, ok)
	require.Equal(t, "acme:k", tenant.PrefixKey("acme", "k"))
	require.Equal(t, "k", tenant.PrefixKey("", "k"))
}
