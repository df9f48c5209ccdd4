package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseBearer(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"missing", "", "", false},
		{"wrong scheme", "Basic abc", "", false},
		{"empty token", "Bearer   ", "", false},
		{"valid", "Bearer adm_test", "adm_test", true},
		{"trims token", "Bearer  adm_test ", "adm_test", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/admin/codes", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			got, ok := ParseBearer(r)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("ParseBearer = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if p, ok := PrincipalFrom(ctx); ok || p != nil {
		t.Fatalf("empty context yielded principal %+v", p)
	}

	ctx = WithPrincipal(ctx, &Principal{APIKey: "adm_test"})
	p, ok := PrincipalFrom(ctx)
	if !ok || p.APIKey != "adm_test" {
		t.Fatalf("principal = %+v ok = %v", p, ok)
	}

	if p, ok := PrincipalFrom(WithPrincipal(context.Background(), nil)); ok || p != nil {
		t.Fatalf("nil principal should not be returned, got %+v", p)
	}
}
