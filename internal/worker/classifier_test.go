package worker

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/any-hub/esw-index/internal/scope"
)

func TestClassifierEligibility(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(o *Options)
		request func(t *testing.T) Request
		want    bool
	}{
		{
			name:    "same origin html navigation",
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/dashboard") },
			want:    true,
		},
		{
			name: "post is never intercepted",
			request: func(t *testing.T) Request {
				r := navigation(t, "http://app.local/dashboard")
				r.Method = http.MethodPost
				return r
			},
			want: false,
		},
		{
			name: "head is never intercepted",
			request: func(t *testing.T) Request {
				r := navigation(t, "http://app.local/dashboard")
				r.Method = http.MethodHead
				return r
			},
			want: false,
		},
		{
			name: "accept without html",
			request: func(t *testing.T) Request {
				r := navigation(t, "http://app.local/api/users")
				r.Header.Set("Accept", "application/json")
				return r
			},
			want: false,
		},
		{
			name: "empty accept header present",
			request: func(t *testing.T) Request {
				r := navigation(t, "http://app.local/x")
				r.Header.Set("Accept", "")
				return r
			},
			want: false,
		},
		{
			name: "missing accept header defaults to eligible",
			request: func(t *testing.T) Request {
				r := navigation(t, "http://app.local/x")
				r.Header.Del("Accept")
				return r
			},
			want: true,
		},
		{
			name: "nil header map tolerated",
			request: func(t *testing.T) Request {
				r := navigation(t, "http://app.local/x")
				r.Header = nil
				return r
			},
			want: true,
		},
		{
			name:    "cross origin host",
			request: func(t *testing.T) Request { return navigation(t, "http://cdn.local/index") },
			want:    false,
		},
		{
			name:    "cross origin scheme",
			request: func(t *testing.T) Request { return navigation(t, "https://app.local/index") },
			want:    false,
		},
		{
			name:    "default port is same origin",
			request: func(t *testing.T) Request { return navigation(t, "http://APP.local:80/index") },
			want:    true,
		},
		{
			name:    "nil url",
			request: func(t *testing.T) Request { return Request{Method: http.MethodGet} },
			want:    false,
		},
		{
			name:    "include scope match",
			mutate:  func(o *Options) { o.IncludeScope = []string{`/app(/.*)?$`} },
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/app/settings") },
			want:    true,
		},
		{
			name:    "include scope miss",
			mutate:  func(o *Options) { o.IncludeScope = []string{`/app(/.*)?$`} },
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/blog") },
			want:    false,
		},
		{
			name:    "exclude scope wins",
			mutate:  func(o *Options) { o.ExcludeScope = []string{`/admin(/.*)?$`} },
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/admin/users") },
			want:    false,
		},
		{
			name: "exclude overrides include",
			mutate: func(o *Options) {
				o.IncludeScope = []string{`/app`}
				o.ExcludeScope = []string{`/app/legacy`}
			},
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/app/legacy") },
			want:    false,
		},
		{
			name:    "tests path in development",
			mutate:  func(o *Options) { o.Environment = "development" },
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/tests") },
			want:    false,
		},
		{
			name:    "tests path in production",
			mutate:  func(o *Options) { o.Environment = "production" },
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/tests") },
			want:    true,
		},
		{
			name:    "tests subpath in development",
			mutate:  func(o *Options) { o.Environment = "development" },
			request: func(t *testing.T) Request { return navigation(t, "http://app.local/tests/unit") },
			want:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := testOptions(t)
			if tc.mutate != nil {
				tc.mutate(&opts)
			}
			c := NewClassifier(opts, scope.NewMatcher())
			if got := c.Eligible(tc.request(t)); got != tc.want {
				t.Fatalf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifierEmptyIncludeCoversEveryPath(t *testing.T) {
	c := NewClassifier(testOptions(t), scope.NewMatcher())
	for _, path := range []string{"/", "/a", "/deep/nested/route", "/index.html?x=1"} {
		u, _ := url.Parse("http://app.local" + path)
		req := Request{Method: http.MethodGet, URL: u}
		if !c.Eligible(req) {
			t.Fatalf("path %s should be eligible with empty include scope", path)
		}
	}
}
