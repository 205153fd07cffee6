package agent

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Dialect names a backend wire protocol.
type Dialect string

const (
	DialectOpenAI Dialect = "openai"
	DialectOllama Dialect = "ollama"
)

// Prober answers whether a URL responds 200 to a GET. Used to sniff
// openai-compatible servers when the backend is left on auto.
type Prober interface {
	Probe(ctx context.Context, url string) bool
}

type httpProber struct {
	client *http.Client
}

// NewProber returns a Prober with a short timeout so auto-detection
// never stalls startup against an unreachable host.
func NewProber() Prober {
	return &httpProber{client: &http.Client{Timeout: 2 * time.Second}}
}

func (p *httpProber) Probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SelectDialect picks the wire dialect and the base URL requests go to.
//
// An explicit backend always wins and leaves the base URL untouched. On
// auto, a base URL that already carries a /v1 path segment is taken as
// openai-compatible; otherwise the endpoint is probed at {base}/v1/models
// and, on a 200, treated as openai-compatible with /v1 appended. Anything
// else is assumed to be ollama.
func SelectDialect(ctx context.Context, explicit string, baseURL string, prober Prober) (Dialect, string) {
	base := strings.TrimRight(baseURL, "/")

	switch explicit {
	case string(DialectOpenAI):
		return DialectOpenAI, base
	case string(DialectOllama):
		return DialectOllama, base
	}

	if strings.Contains(base, "/v1") {
		return DialectOpenAI, base
	}
	if prober != nil && prober.Probe(ctx, base+"/v1/models") {
		return DialectOpenAI, base + "/v1"
	}
	return DialectOllama, base
}
