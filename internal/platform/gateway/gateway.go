package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName     = "github.com/ogurasousui/codex-employee-directory/internal/platform/gateway"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20

	// RequestIDHeader は各リクエストに付与する相関 ID のヘッダ名です。
	RequestIDHeader = "X-Request-Id"
)

// Options は 1 回の呼び出しに対する設定です。
type Options struct {
	// Method は HTTP メソッドです。空の場合は GET になります。
	Method string
	Query  url.Values
	// Body は JSON にエンコードして送信されます。
	Body any
	// Key はキャンセル単位のキーです。空の場合はリソースパスを使用します。
	Key    string
	Header http.Header
}

// Option は Gateway の構築オプションです。
type Option func(*Gateway)

// WithHTTPClient は利用する http.Client を差し替えます。
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithTimeout は 1 回の呼び出し全体のタイムアウトを設定します。
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMaxResponseBytes はレスポンスボディの上限サイズを設定します。
func WithMaxResponseBytes(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBody = n
		}
	}
}

// WithTracer はスパン生成に利用する Tracer を設定します。
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Gateway) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

type call struct {
	cancel context.CancelCauseFunc
}

// Gateway は REST API への呼び出しを発行し、同一キーの実行中呼び出しを後勝ちでキャンセルします。
type Gateway struct {
	baseURL *url.URL
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
	maxBody int64

	mu    sync.Mutex
	calls map[string]*call
}

// New は baseURL を起点とする Gateway を生成します。
func New(baseURL string, opts ...Option) (*Gateway, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("gateway: base url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway: base url must be absolute: %q", trimmed)
	}

	g := &Gateway{
		baseURL: u,
		client:  &http.Client{},
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		maxBody: maxBodyBytes,
		calls:   make(map[string]*call),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("gateway")
	return g, nil
}

// Request は resource に対して HTTP 呼び出しを行い、成功時にレスポンスを out へデコードします。
// 同一キーの呼び出しが実行中であれば先にそれをキャンセルします。
// キャンセルされた呼び出しは ErrCanceled を返し、out には一切書き込みません。
func (g *Gateway) Request(ctx context.Context, resource string, opts Options, out any) error {
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	key := opts.Key
	if key == "" {
		key = resource
	}

	callCtx, c := g.track(ctx, key)
	defer g.release(key, c)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, g.timeout)
		defer cancel()
	}

	spanCtx, span := g.tracer.Start(callCtx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", resource),
			attribute.String("gateway.key", key),
		),
	)
	defer span.End()

	body, err := g.do(spanCtx, method, resource, opts, span)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		if cancelErr := canceledError(callCtx, method, resource); cancelErr != nil {
			span.SetStatus(codes.Error, "canceled")
			return cancelErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode response")
		return fmt.Errorf("gateway: decode %s %s: %w", method, resource, err)
	}
	return nil
}

// Cancel は key で追跡中の呼び出しがあればキャンセルします。存在しなければ何もしません。
func (g *Gateway) Cancel(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		c.cancel(errCanceledByOwner)
		delete(g.calls, key)
	}
}

// InFlight は追跡中の呼び出し数を返します。
func (g *Gateway) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *Gateway) track(ctx context.Context, key string) (context.Context, *call) {
	callCtx, cancel := context.WithCancelCause(ctx)
	c := &call{cancel: cancel}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.calls[key]; ok {
		prev.cancel(errSuperseded)
		g.logger.Debug("superseded in-flight request", zap.String("key", key))
	}
	g.calls[key] = c
	return callCtx, c
}

func (g *Gateway) release(key string, c *call) {
	g.mu.Lock()
	if cur, ok := g.calls[key]; ok && cur == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	c.cancel(nil)
}

func (g *Gateway) do(ctx context.Context, method, resource string, opts Options, span trace.Span) ([]byte, error) {
	target := g.baseURL.JoinPath(resource)
	if len(opts.Query) > 0 {
		target.RawQuery = opts.Query.Encode()
	}

	var reader io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode %s %s: %w", method, resource, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("gateway: build %s %s: %w", method, resource, err)
	}
	for name, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(attribute.String("http.request.id", requestID))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s %s: %w", method, resource, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("gateway: read %s %s: %w", method, resource, err)
	}
	if int64(len(body)) > g.maxBody {
		return nil, fmt.Errorf("gateway: read %s %s: %w (limit %d bytes)", method, resource, ErrResponseTooLarge, g.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     method,
			Path:       resource,
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(body, "message").String(),
		}
	}

	g.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", resource),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
	)
	return body, nil
}

// canceledError は呼び出しがキャンセルされていれば ErrCanceled を包んだエラーを返します。
// タイムアウトは通信エラーとして扱うため nil を返します。
func canceledError(callCtx context.Context, method, resource string) error {
	if callCtx.Err() == nil {
		return nil
	}
	cause := context.Cause(callCtx)
	if errors.Is(cause, context.DeadlineExceeded) {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", ErrCanceled, method, resource, cause)
}
