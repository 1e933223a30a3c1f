package session

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/fetchpix/fetchpix/config"
)

const productPage = `<html><body>
<img src="https://cdn.example/000000000001_front.jpg">
<img src="https://cdn.example/000000000001_back.jpg">
<img src="https://ads.example/banner.jpg">
<img alt="no source">
</body></html>`

func TestQuerySources(t *testing.T) {
	tests := []struct {
		name        string
		fingerprint string
		want        []string
	}{
		{
			name:        "fingerprint filters hosts",
			fingerprint: "cdn.example",
			want: []string{
				"https://cdn.example/000000000001_front.jpg",
				"https://cdn.example/000000000001_back.jpg",
			},
		},
		{
			name:        "empty fingerprint matches all",
			fingerprint: "",
			want: []string{
				"https://cdn.example/000000000001_front.jpg",
				"https://cdn.example/000000000001_back.jpg",
				"https://ads.example/banner.jpg",
			},
		},
		{
			name:        "no matches",
			fingerprint: "other.example",
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, err := querySources(productPage, tt.fingerprint)
			if err != nil {
				t.Fatalf("query sources: %v", err)
			}
			if len(sources) != len(tt.want) {
				t.Fatalf("len(sources) = %d, want %d", len(sources), len(tt.want))
			}
			for i, src := range sources {
				if src != tt.want[i] {
					t.Fatalf("sources[%d] = %q, want %q", i, src, tt.want[i])
				}
			}
		})
	}
}

func newStaticSession(t *testing.T, transport *httpmock.MockTransport) *StaticSession {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engine = config.EngineStatic

	factory := &StaticFactory{cfg: cfg}
	sess, err := factory.NewSession(context.Background())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	static := sess.(*StaticSession)
	static.WithTransport(transport)
	return static
}

func TestStaticSessionOpenAndQuery(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.example/item/000000000001",
		httpmock.NewStringResponder(200, productPage))

	sess := newStaticSession(t, transport)
	defer sess.Close()

	if err := sess.Open(context.Background(), "http://shop.example/item/000000000001"); err != nil {
		t.Fatalf("open: %v", err)
	}
	sources, err := sess.QueryMatching("cdn.example")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(sources))
	}
}

func TestStaticSessionOpenFailure(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.example/missing",
		httpmock.NewStringResponder(404, "not found"))

	sess := newStaticSession(t, transport)
	defer sess.Close()

	if err := sess.Open(context.Background(), "http://shop.example/missing"); err == nil {
		t.Fatalf("expected error for 404 page")
	}
}

func TestFetchBytes(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://cdn.example/000000000001_front.jpg",
		httpmock.NewBytesResponder(200, []byte("jpegbytes")))

	sess := newStaticSession(t, transport)
	defer sess.Close()

	data, err := sess.FetchBytes(context.Background(), "http://cdn.example/000000000001_front.jpg")
	if err != nil {
		t.Fatalf("fetch bytes: %v", err)
	}
	if string(data) != "jpegbytes" {
		t.Fatalf("data = %q, want %q", data, "jpegbytes")
	}
}

func TestFetchBytesHTTPStatus(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://cdn.example/gone.jpg",
		httpmock.NewStringResponder(410, "gone"))

	sess := newStaticSession(t, transport)
	defer sess.Close()

	_, err := sess.FetchBytes(context.Background(), "http://cdn.example/gone.jpg")
	var status ErrHTTPStatus
	if !errors.As(err, &status) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
	if status.Code != 410 {
		t.Fatalf("status code = %d, want 410", status.Code)
	}
}

func TestErrorLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "none"},
		{name: "context timeout", err: classifyError(context.DeadlineExceeded), want: "timeout"},
		{name: "net timeout", err: classifyError(&net.DNSError{IsTimeout: true}), want: "timeout"},
		{name: "connection", err: classifyError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}), want: "connection"},
		{name: "http status", err: ErrHTTPStatus{Code: 404, URL: "http://x"}, want: "http_status"},
		{name: "other", err: errors.New("weird"), want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorLabel(tt.err); got != tt.want {
				t.Fatalf("ErrorLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewFactorySelectsEngine(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Engine = config.EngineStatic
	if _, err := NewFactory(cfg); err != nil {
		t.Fatalf("static factory: %v", err)
	}

	cfg.Engine = config.EngineChrome
	if _, err := NewFactory(cfg); err != nil {
		t.Fatalf("chrome factory: %v", err)
	}

	cfg.Engine = "unknown"
	if _, err := NewFactory(cfg); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}
