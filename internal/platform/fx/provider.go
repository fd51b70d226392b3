package fx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

// RateProvider returns quote-currency rates for one base currency.
type RateProvider interface {
	Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

var ErrLookupFailed = errors.New("exchange rate lookup failed")

type cachedRates struct {
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
}

// HTTPRateProvider queries {baseURL}/{BASE} and expects a body like
// {"result":"success","base_code":"USD","rates":{"HNL":24.61}}.
type HTTPRateProvider struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedRates
}

type ProviderOption func(*HTTPRateProvider)

// WithDialer replaces the client's dialer; tests use an in-memory listener.
func WithDialer(dial func(addr string) (net.Conn, error)) ProviderOption {
	return func(p *HTTPRateProvider) { p.client.Dial = dial }
}

func WithClock(now func() time.Time) ProviderOption {
	return func(p *HTTPRateProvider) { p.now = now }
}

func NewHTTPRateProvider(baseURL string, timeout, ttl time.Duration, opts ...ProviderOption) *HTTPRateProvider {
	p := &HTTPRateProvider{
		client: &fasthttp.Client{
			Name:                "odonto-fx",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[string]cachedRates),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type ratesResponse struct {
	Result string                     `json:"result"`
	Base   string                     `json:"base_code"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

func (p *HTTPRateProvider) Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	base = strings.ToUpper(base)
	if rates, ok := p.cached(base); ok {
		return rates, nil
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, context.DeadlineExceeded)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.baseURL + "/" + base)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := p.client.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode())
	}

	var body ratesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
	}
	if body.Result != "" && body.Result != "success" {
		return nil, fmt.Errorf("%w: result %q", ErrLookupFailed, body.Result)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rate table", ErrLookupFailed)
	}

	p.mu.Lock()
	p.cache[base] = cachedRates{rates: body.Rates, fetchedAt: p.now()}
	p.mu.Unlock()
	return body.Rates, nil
}

func (p *HTTPRateProvider) cached(base string) (map[string]decimal.Decimal, bool) {
	if p.ttl <= 0 {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.cache[base]
	if !ok || p.now().Sub(c.fetchedAt) > p.ttl {
		return nil, false
	}
	return c.rates, true
}
