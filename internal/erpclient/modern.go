package erpclient

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
	"time"

	"github.com/tombee/odoo-mcp/internal/metrics"
	"github.com/tombee/odoo-mcp/internal/observability"
)

// Modern is the API-key, stateless dialect: every call is a POST to
// <url>/json/2/<endpoint> carrying the key in the Authorization header
// (§4.4).
type Modern struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     observability.Tracer
	metrics    *metrics.Registry
	instance   string
}

// NewModern constructs a Modern client for one instance.
func NewModern(instance, baseURL, apiKey string, timeout time.Duration, tracer observability.Tracer, m *metrics.Registry) *Modern {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	return &Modern{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracer,
		metrics:    m,
		instance:   instance,
	}
}

func (c *Modern) call(ctx context.Context, endpoint string, payload map[string]interface{}, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "erpclient.modern."+endpoint)
	defer span.End()
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return newError(KindProtocol, "encode request body", err)
	}

	target, err := url.JoinPath(c.baseURL, "json", "2", endpoint)
	if err != nil {
		return newError(KindProtocol, "build request url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return newError(KindProtocol, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	outcome := "ok"
	defer func() {
		if c.metrics != nil {
			c.metrics.ErpCallDurationSeconds.WithLabelValues(c.instance, endpoint, outcome).Observe(time.Since(start).Seconds())
		}
	}()

	if err != nil {
		wireErr := classifyTransportError(err)
		outcome = strings.ToLower(string(wireErr.Kind))
		span.RecordError(wireErr)
		return wireErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "network"
		wireErr := newError(KindNetwork, "read response body", err)
		span.RecordError(wireErr)
		return wireErr
	}

	if resp.StatusCode >= 400 {
		outcome = "error"
		wireErr := classifyStatus(resp.StatusCode, respBody)
		span.RecordError(wireErr)
		return wireErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			outcome = "protocol"
			wireErr := newError(KindProtocol, "decode response body", err)
			span.RecordError(wireErr)
			return wireErr
		}
	}
	return nil
}

func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, "request timed out", err)
	}
	return newError(KindNetwork, "request failed", err)
}

func classifyStatus(status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindAuth, msg, nil)
	case status == http.StatusNotFound:
		return newError(KindNotFound, msg, nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(KindTimeout, msg, nil)
	case status >= 500:
		return newError(KindServerFault, msg, nil)
	default:
		return newError(KindProtocol, fmt.Sprintf("unexpected status %d: %s", status, msg), nil)
	}
}

func (c *Modern) Search(ctx context.Context, model string, domain []interface{}, opts SearchOptions) ([]int, error) {
	var out struct {
		IDs []int `json:"ids"`
	}
	err := c.call(ctx, "search", map[string]interface{}{
		"model": model, "domain": domain,
		"limit": opts.Limit, "offset": opts.Offset, "order": opts.Order,
	}, &out)
	return out.IDs, err
}

func (c *Modern) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts SearchOptions) ([]map[string]interface{}, int, error) {
	var out struct {
		Records []map[string]interface{} `json:"records"`
		Count   int                       `json:"count"`
	}
	err := c.call(ctx, "search_read", map[string]interface{}{
		"model": model, "domain": domain, "fields": fields,
		"limit": opts.Limit, "offset": opts.Offset, "order": opts.Order,
	}, &out)
	return out.Records, out.Count, err
}

func (c *Modern) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error) {
	var out struct {
		Records []map[string]interface{} `json:"records"`
	}
	err := c.call(ctx, "read", map[string]interface{}{
		"model": model, "ids": ids, "fields": fields,
	}, &out)
	return out.Records, err
}

func (c *Modern) Create(ctx context.Context, model string, values map[string]interface{}) (int, error) {
	var out struct {
		ID int `json:"id"`
	}
	err := c.call(ctx, "create", map[string]interface{}{"model": model, "values": values}, &out)
	return out.ID, err
}

func (c *Modern) CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error) {
	var out struct {
		IDs []int `json:"ids"`
	}
	err := c.call(ctx, "create_batch", map[string]interface{}{"model": model, "values_list": valuesList}, &out)
	return out.IDs, err
}

func (c *Modern) Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error) {
	var out struct {
		Success      bool `json:"success"`
		UpdatedCount int  `json:"updated_count"`
	}
	err := c.call(ctx, "write", map[string]interface{}{"model": model, "ids": ids, "values": values}, &out)
	return out.Success, out.UpdatedCount, err
}

func (c *Modern) Unlink(ctx context.Context, model string, ids []int) (bool, int, error) {
	var out struct {
		Success      bool `json:"success"`
		DeletedCount int  `json:"deleted_count"`
	}
	err := c.call(ctx, "unlink", map[string]interface{}{"model": model, "ids": ids}, &out)
	return out.Success, out.DeletedCount, err
}

func (c *Modern) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.call(ctx, "search_count", map[string]interface{}{"model": model, "domain": domain}, &out)
	return out.Count, err
}

func (c *Modern) Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	var out struct {
		Result interface{} `json:"result"`
	}
	err := c.call(ctx, "execute", map[string]interface{}{
		"model": model, "method": method, "args": args, "kwargs": kwargs,
	}, &out)
	return out.Result, err
}

func (c *Modern) WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error) {
	var out struct {
		Result     interface{} `json:"result"`
		ExecutedOn []int       `json:"executed_on"`
	}
	err := c.call(ctx, "workflow_action", map[string]interface{}{
		"model": model, "ids": ids, "action": action,
	}, &out)
	return out.Result, err
}

func (c *Modern) GenerateReport(ctx context.Context, name string, ids []int) (*Report, error) {
	var out struct {
		PdfBase64  string `json:"pdf_base64"`
		ReportName string `json:"report_name"`
		MimeType   string `json:"mime_type"`
	}
	err := c.call(ctx, "generate_report", map[string]interface{}{"name": name, "ids": ids}, &out)
	if err != nil {
		return nil, err
	}
	raw, decodeErr := decodeReportBytes(out.PdfBase64)
	if decodeErr != nil {
		return nil, newError(KindProtocol, "decode report bytes", decodeErr)
	}
	mimeType := out.MimeType
	if mimeType == "" {
		mimeType = sniffMimeType(raw)
	}
	reportName := out.ReportName
	if reportName == "" {
		reportName = name
	}
	return &Report{Bytes: raw, ReportName: reportName, MimeType: mimeType}, nil
}

func (c *Modern) GetModelMetadata(ctx context.Context, model string) (*ModelMetadata, error) {
	var out struct {
		Model struct {
			Name        string                   `json:"name"`
			Description string                   `json:"description"`
			Fields      map[string]FieldMetadata  `json:"fields"`
		} `json:"model"`
	}
	err := c.call(ctx, "get_model_metadata", map[string]interface{}{"model": model}, &out)
	if err != nil {
		return nil, err
	}
	return &ModelMetadata{Name: out.Model.Name, Description: out.Model.Description, Fields: out.Model.Fields}, nil
}

func (c *Modern) ListModels(ctx context.Context, domain []interface{}, limit, offset int) ([]ModelSummary, error) {
	var out struct {
		Models []ModelSummary `json:"models"`
	}
	err := c.call(ctx, "list_models", map[string]interface{}{
		"domain": domain, "limit": limit, "offset": offset,
	}, &out)
	return out.Models, err
}

func (c *Modern) CheckAccess(ctx context.Context, model, operation string, ids []int) (*AccessResult, error) {
	var out struct {
		HasAccess   bool `json:"has_access"`
		ModelLevel  bool `json:"model_level"`
		RecordLevel bool `json:"record_level"`
	}
	err := c.call(ctx, "check_access", map[string]interface{}{
		"model": model, "operation": operation, "ids": ids,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &AccessResult{HasAccess: out.HasAccess, ModelLevel: out.ModelLevel, RecordLevel: out.RecordLevel}, nil
}

func (c *Modern) DatabaseCleanup(ctx context.Context, opts CleanupOptions) (*CleanupReport, error) {
	return runDatabaseCleanup(ctx, c, opts)
}

func (c *Modern) DeepCleanup(ctx context.Context, opts DeepCleanupOptions) (*DeepCleanupReport, error) {
	return runDeepCleanup(ctx, c, opts)
}
