// Package outbound собирает HTTP клиент для обращений к внешним API:
// повторы через pester, ограничение частоты через ratelimit и логирование запросов.
package outbound

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/cutflow/cutflow-backend/internal/logger"
)

// Options параметры исходящего HTTP клиента.
type Options struct {
	RequestsPerSecond int
	MaxRetries        int
	Timeout           time.Duration
	Transport         http.RoundTripper
}

type Client struct {
	pester  *pester.Client
	limiter ratelimit.Limiter
}

// New собирает клиент с повторами и ограничением частоты запросов.
func New(opts Options, component string) *Client {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client := pester.New()
	client.Concurrency = 1
	client.MaxRetries = opts.MaxRetries
	client.Backoff = pester.ExponentialBackoff
	client.KeepLog = true
	client.Timeout = opts.Timeout
	client.RetryOnHTTP429 = true
	client.Transport = &loggingRoundTripper{proxied: transport, log: logger.Component(component)}

	return &Client{
		pester:  client,
		limiter: ratelimit.New(opts.RequestsPerSecond),
	}
}

// Do выполняет запрос и возвращает тело ответа. Статус вне 2xx считается ошибкой,
// тело при этом тоже возвращается.
func (c *Client) Do(req *http.Request) ([]byte, int, error) {
	c.limiter.Take()

	resp, err := c.pester.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("запрос %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("чтение ответа %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, fmt.Errorf("запрос %s: статус %d", req.URL.Path, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

type loggingRoundTripper struct {
	proxied http.RoundTripper
	log     *logrus.Entry
}

func (t *loggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	started := time.Now()
	resp, err := t.proxied.RoundTrip(r)
	fields := logrus.Fields{
		"method":  r.Method,
		"path":    r.URL.Path,
		"elapsed": time.Since(started).String(),
	}
	if err != nil {
		t.log.WithFields(fields).WithError(err).Warn("исходящий запрос завершился ошибкой")
		return nil, err
	}
	fields["status"] = resp.StatusCode
	t.log.WithFields(fields).Debug("исходящий запрос")
	return resp, nil
}
