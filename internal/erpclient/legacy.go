package erpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tombee/odoo-mcp/internal/metrics"
	"github.com/tombee/odoo-mcp/internal/observability"
)

// rpcRequest is the legacy dialect's JSON-RPC 2.0 envelope.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// sessionExpiredMarkers are the fault code/message fragments the
// backend uses to signal that a previously valid session cookie has
// expired; a match triggers exactly one transparent re-login (§4.4).
var sessionExpiredMarkers = []string{"session_expired", "Session Expired", "invalid session"}

// Legacy is the session-cookie JSON-RPC dialect. All ORM-shaped
// operations dispatch through object.execute_kw.
type Legacy struct {
	baseURL    string
	db         string
	username   string
	password   string
	httpClient *http.Client
	tracer     observability.Tracer
	metrics    *metrics.Registry
	instance   string

	mu        sync.Mutex
	sessionID string
	uid       int

	idCounter int64
}

// NewLegacy constructs a Legacy client for one instance. Login happens
// lazily on the first call, not at construction time.
func NewLegacy(instance, baseURL, db, username, password string, timeout time.Duration, tracer observability.Tracer, m *metrics.Registry) *Legacy {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	return &Legacy{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		db:         db,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracer,
		metrics:    m,
		instance:   instance,
	}
}

func (c *Legacy) nextID() int {
	c.idCounter++
	return int(c.idCounter)
}

// login authenticates and stores the resulting session cookie + uid.
func (c *Legacy) login(ctx context.Context) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]interface{}{
			"db":       c.db,
			"login":    c.username,
			"password": c.password,
		},
		ID: c.nextID(),
	}

	var cookie string
	var out struct {
		UID int `json:"uid"`
	}
	if err := c.rawCall(ctx, "/web/session/authenticate", req, &out, &cookie); err != nil {
		return newError(KindAuth, "legacy login failed", err)
	}
	if out.UID == 0 {
		return newError(KindAuth, "legacy login rejected: invalid credentials", nil)
	}

	c.mu.Lock()
	c.sessionID = cookie
	c.uid = out.UID
	c.mu.Unlock()
	return nil
}

// rawCall performs one JSON-RPC POST, optionally attaching a session
// cookie, and captures any Set-Cookie the server returns.
func (c *Legacy) rawCall(ctx context.Context, path string, req rpcRequest, out interface{}, setCookie *string) error {
	body, err := json.Marshal(req)
	if err != nil {
		return newError(KindProtocol, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return newError(KindProtocol, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	cookie := c.sessionID
	c.mu.Unlock()
	if cookie != "" {
		httpReq.AddCookie(&http.Cookie{Name: "session_id", Value: cookie})
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newError(KindTimeout, "request timed out", err)
		}
		return newError(KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if setCookie != nil {
		for _, ck := range resp.Cookies() {
			if ck.Name == "session_id" {
				*setCookie = ck.Value
			}
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return newError(KindProtocol, "decode response", err)
	}

	if rpcResp.Error != nil {
		if isSessionExpired(rpcResp.Error) {
			return &sessionExpiredError{inner: newError(KindAuth, rpcResp.Error.Message, nil)}
		}
		return classifyRPCFault(rpcResp.Error)
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return newError(KindProtocol, "decode result", err)
		}
	}
	return nil
}

// sessionExpiredError wraps the detected-expiry case so callWithRelogin
// can distinguish it from a terminal auth failure without string
// matching twice.
type sessionExpiredError struct{ inner error }

func (e *sessionExpiredError) Error() string { return e.inner.Error() }
func (e *sessionExpiredError) Unwrap() error { return e.inner }

func isSessionExpired(rpcErr *rpcError) bool {
	haystack := rpcErr.Message
	if data, ok := rpcErr.Data.(map[string]interface{}); ok {
		if name, ok := data["name"].(string); ok {
			haystack += " " + name
		}
	}
	for _, marker := range sessionExpiredMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

func classifyRPCFault(rpcErr *rpcError) *Error {
	msg := rpcErr.Message
	switch {
	case rpcErr.Code == 404:
		return newError(KindNotFound, msg, nil)
	case rpcErr.Code == 403:
		return newError(KindAccessDenied, msg, nil)
	case rpcErr.Code >= 500:
		return newError(KindServerFault, msg, nil)
	default:
		return newError(KindProtocol, msg, nil)
	}
}

// executeKw performs object.execute_kw, transparently re-logging in
// exactly once if the session has expired (§4.4). A second expiry is
// surfaced unchanged.
func (c *Legacy) executeKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "erpclient.legacy."+method)
	defer span.End()
	start := time.Now()

	outcome, err := c.callWithRelogin(ctx, model, method, args, kwargs, out)
	if c.metrics != nil {
		c.metrics.ErpCallDurationSeconds.WithLabelValues(c.instance, method, outcome).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (c *Legacy) callWithRelogin(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, out interface{}) (string, error) {
	c.mu.Lock()
	needsLogin := c.sessionID == ""
	c.mu.Unlock()
	if needsLogin {
		if err := c.login(ctx); err != nil {
			return "auth", err
		}
	}

	err := c.rawExecuteKw(ctx, model, method, args, kwargs, out)
	var expired *sessionExpiredError
	if errors.As(err, &expired) {
		if c.metrics != nil {
			c.metrics.ErpReloginTotal.WithLabelValues(c.instance).Inc()
		}
		if loginErr := c.login(ctx); loginErr != nil {
			return "auth", loginErr
		}
		err = c.rawExecuteKw(ctx, model, method, args, kwargs, out)
		if err != nil {
			var wireErr *Error
			if errors.As(err, &wireErr) {
				return strings.ToLower(string(wireErr.Kind)), err
			}
			return "error", err
		}
		return "ok", nil
	}
	if err != nil {
		var wireErr *Error
		if errors.As(err, &wireErr) {
			return strings.ToLower(string(wireErr.Kind)), err
		}
		return "error", err
	}
	return "ok", nil
}

func (c *Legacy) rawExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, out interface{}) error {
	c.mu.Lock()
	uid := c.uid
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]interface{}{
			"service": "object",
			"method":  "execute_kw",
			"args":    []interface{}{c.db, uid, c.password, model, method, args, kwargs},
		},
		ID: c.nextID(),
	}
	return c.rawCall(ctx, "/web/dataset/call_kw", req, out, nil)
}

func (c *Legacy) Search(ctx context.Context, model string, domain []interface{}, opts SearchOptions) ([]int, error) {
	var ids []int
	kwargs := searchKwargs(opts)
	err := c.executeKw(ctx, model, "search", []interface{}{domain}, kwargs, &ids)
	return ids, err
}

func (c *Legacy) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts SearchOptions) ([]map[string]interface{}, int, error) {
	var records []map[string]interface{}
	kwargs := searchKwargs(opts)
	kwargs["fields"] = fields
	if err := c.executeKw(ctx, model, "search_read", []interface{}{domain}, kwargs, &records); err != nil {
		return nil, 0, err
	}
	count, err := c.SearchCount(ctx, model, domain)
	if err != nil {
		return records, len(records), nil // count is best-effort supplementary data
	}
	return records, count, nil
}

func searchKwargs(opts SearchOptions) map[string]interface{} {
	kwargs := map[string]interface{}{}
	if opts.Limit > 0 {
		kwargs["limit"] = opts.Limit
	}
	if opts.Offset > 0 {
		kwargs["offset"] = opts.Offset
	}
	if opts.Order != "" {
		kwargs["order"] = opts.Order
	}
	return kwargs
}

func (c *Legacy) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error) {
	var records []map[string]interface{}
	err := c.executeKw(ctx, model, "read", []interface{}{ids}, map[string]interface{}{"fields": fields}, &records)
	return records, err
}

func (c *Legacy) Create(ctx context.Context, model string, values map[string]interface{}) (int, error) {
	var id int
	err := c.executeKw(ctx, model, "create", []interface{}{values}, map[string]interface{}{}, &id)
	return id, err
}

func (c *Legacy) CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error) {
	var ids []int
	err := c.executeKw(ctx, model, "create", []interface{}{valuesList}, map[string]interface{}{}, &ids)
	return ids, err
}

func (c *Legacy) Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error) {
	var success bool
	err := c.executeKw(ctx, model, "write", []interface{}{ids, values}, map[string]interface{}{}, &success)
	return success, len(ids), err
}

func (c *Legacy) Unlink(ctx context.Context, model string, ids []int) (bool, int, error) {
	var success bool
	err := c.executeKw(ctx, model, "unlink", []interface{}{ids}, map[string]interface{}{}, &success)
	return success, len(ids), err
}

func (c *Legacy) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	var count int
	err := c.executeKw(ctx, model, "search_count", []interface{}{domain}, map[string]interface{}{}, &count)
	return count, err
}

func (c *Legacy) Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	var result interface{}
	err := c.executeKw(ctx, model, method, args, kwargs, &result)
	return result, err
}

func (c *Legacy) WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error) {
	var result interface{}
	err := c.executeKw(ctx, model, action, []interface{}{ids}, map[string]interface{}{}, &result)
	return result, err
}

func (c *Legacy) GenerateReport(ctx context.Context, name string, ids []int) (*Report, error) {
	var out struct {
		Base64   string `json:"base64"`
		MimeType string `json:"mime_type"`
	}
	if err := c.executeKw(ctx, "ir.actions.report", "render_qweb_pdf", []interface{}{name, ids}, map[string]interface{}{}, &out); err != nil {
		return nil, err
	}
	raw, err := decodeReportBytes(out.Base64)
	if err != nil {
		return nil, newError(KindProtocol, "decode report bytes", err)
	}
	mimeType := out.MimeType
	if mimeType == "" {
		mimeType = sniffMimeType(raw)
	}
	return &Report{Bytes: raw, ReportName: name, MimeType: mimeType}, nil
}

func (c *Legacy) GetModelMetadata(ctx context.Context, model string) (*ModelMetadata, error) {
	var fields map[string]FieldMetadata
	if err := c.executeKw(ctx, model, "fields_get", []interface{}{}, map[string]interface{}{}, &fields); err != nil {
		return nil, err
	}
	return &ModelMetadata{Name: model, Fields: fields}, nil
}

func (c *Legacy) ListModels(ctx context.Context, domain []interface{}, limit, offset int) ([]ModelSummary, error) {
	var records []map[string]interface{}
	kwargs := map[string]interface{}{"fields": []string{"id", "model", "name"}}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	if offset > 0 {
		kwargs["offset"] = offset
	}
	if err := c.executeKw(ctx, "ir.model", "search_read", []interface{}{domain}, kwargs, &records); err != nil {
		return nil, err
	}
	out := make([]ModelSummary, 0, len(records))
	for _, r := range records {
		out = append(out, ModelSummary{
			ID:    asInt(r["id"]),
			Model: asString(r["model"]),
			Name:  asString(r["name"]),
		})
	}
	return out, nil
}

func (c *Legacy) CheckAccess(ctx context.Context, model, operation string, ids []int) (*AccessResult, error) {
	var modelLevel bool
	if err := c.executeKw(ctx, model, "check_access_rights", []interface{}{operation}, map[string]interface{}{"raise_exception": false}, &modelLevel); err != nil {
		return nil, err
	}
	recordLevel := modelLevel
	if len(ids) > 0 && modelLevel {
		if err := c.executeKw(ctx, model, "check_access_rule", []interface{}{ids, operation}, map[string]interface{}{}, nil); err != nil {
			recordLevel = false
		}
	}
	return &AccessResult{HasAccess: modelLevel && recordLevel, ModelLevel: modelLevel, RecordLevel: recordLevel}, nil
}

func (c *Legacy) DatabaseCleanup(ctx context.Context, opts CleanupOptions) (*CleanupReport, error) {
	return runDatabaseCleanup(ctx, c, opts)
}

func (c *Legacy) DeepCleanup(ctx context.Context, opts DeepCleanupOptions) (*DeepCleanupReport, error) {
	return runDeepCleanup(ctx, c, opts)
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

