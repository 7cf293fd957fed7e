// Package dispatcher implements OpDispatcher: projecting caller
// arguments onto a tool descriptor's op.map, invoking the bound
// ErpClient operation, and shaping the result into the stable
// envelopes of §6.
package dispatcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/erpclient"
	"github.com/tombee/odoo-mcp/internal/metadatacache"
	"github.com/tombee/odoo-mcp/internal/metrics"
	"github.com/tombee/odoo-mcp/internal/observability"
)

// ClientPool is the subset of clientpool.Pool the dispatcher needs.
type ClientPool interface {
	Get(name string) (erpclient.Client, error)
}

// MetadataCache is the subset of metadatacache.Cache the dispatcher needs.
type MetadataCache interface {
	Get(ctx context.Context, instance, model string, loader metadatacache.Loader) (*erpclient.ModelMetadata, error)
}

// Dispatcher is the OpDispatcher.
type Dispatcher struct {
	pool    ClientPool
	cache   MetadataCache
	metrics *metrics.Registry
	tracer  observability.Tracer
	limiter *rate.Limiter
}

// New constructs a Dispatcher. ratePerSecond <= 0 disables rate limiting.
// Spans are no-ops until a tracer is installed with WithTracer.
func New(pool ClientPool, cache MetadataCache, m *metrics.Registry, ratePerSecond float64, burst int) *Dispatcher {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Dispatcher{pool: pool, cache: cache, metrics: m, tracer: observability.NewNoopTracer(), limiter: limiter}
}

// WithTracer overrides the no-op tracer used at construction.
func (d *Dispatcher) WithTracer(tracer observability.Tracer) *Dispatcher {
	if tracer != nil {
		d.tracer = tracer
	}
	return d
}

// RateLimitedError is returned when the dispatcher's token bucket is
// exhausted; callers surface this the same way as any tool-call error.
type RateLimitedError struct{}

func (RateLimitedError) Error() string { return "dispatcher: rate limit exceeded" }

// Dispatch runs one tool call: resolves the instance, projects args,
// invokes the bound operation, and shapes the §6 envelope. The
// returned value is JSON-marshalable as-is.
func (d *Dispatcher) Dispatch(ctx context.Context, tool config.ToolDescriptor, args map[string]interface{}) (interface{}, error) {
	if d.limiter != nil && !d.limiter.Allow() {
		return nil, RateLimitedError{}
	}

	correlationID := uuid.NewString()
	ctx, span := d.tracer.Start(ctx, "dispatcher.dispatch."+tool.Name)
	defer span.End()
	span.SetAttributes(map[string]any{
		"correlation_id": correlationID,
		"tool":           tool.Name,
		"op":             string(tool.Op.Type),
	})

	start := time.Now()
	outcome := "ok"
	defer func() {
		if d.metrics != nil {
			d.metrics.ToolDispatchDuration.WithLabelValues(tool.Name, outcome).Observe(time.Since(start).Seconds())
		}
	}()

	params := projectArgs(args, tool.Op.Map)
	instance := optionalString(params, "instance", "default")

	client, err := d.pool.Get(instance)
	if err != nil {
		outcome = "invalid_argument"
		span.RecordError(err)
		return nil, &InvalidArgumentError{Parameter: "instance", Reason: err.Error()}
	}

	result, err := d.dispatchOp(ctx, client, instance, tool.Op.Type, params)
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) dispatchOp(ctx context.Context, client erpclient.Client, instance string, op config.OpKind, params map[string]interface{}) (interface{}, error) {
	switch op {
	case config.OpSearch:
		return d.opSearch(ctx, client, params)
	case config.OpSearchRead:
		return d.opSearchRead(ctx, client, params)
	case config.OpRead:
		return d.opRead(ctx, client, params)
	case config.OpCreate:
		return d.opCreate(ctx, client, params)
	case config.OpCreateBatch:
		return d.opCreateBatch(ctx, client, params)
	case config.OpWrite:
		return d.opWrite(ctx, client, params)
	case config.OpUnlink:
		return d.opUnlink(ctx, client, params)
	case config.OpSearchCount:
		return d.opSearchCount(ctx, client, params)
	case config.OpExecute:
		return d.opExecute(ctx, client, params)
	case config.OpWorkflowAction:
		return d.opWorkflowAction(ctx, client, params)
	case config.OpGenerateReport:
		return d.opGenerateReport(ctx, client, params)
	case config.OpGetModelMetadata:
		return d.opGetModelMetadata(ctx, client, instance, params)
	case config.OpListModels:
		return d.opListModels(ctx, client, params)
	case config.OpCheckAccess:
		return d.opCheckAccess(ctx, client, params)
	case config.OpDatabaseCleanup:
		return d.opDatabaseCleanup(ctx, client, params)
	case config.OpDeepCleanup:
		return d.opDeepCleanup(ctx, client, params)
	default:
		return nil, &UnknownOpError{Op: string(op)}
	}
}

func searchOptions(params map[string]interface{}) erpclient.SearchOptions {
	return erpclient.SearchOptions{
		Limit:  optionalInt(params, "limit"),
		Offset: optionalInt(params, "offset"),
		Order:  optionalString(params, "order", ""),
	}
}

func (d *Dispatcher) opSearch(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	domain := optionalArray(params, "domain")
	ids, err := client.Search(ctx, model, domain, searchOptions(params))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ids": ids, "count": len(ids)}, nil
}

func (d *Dispatcher) opSearchRead(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	domain := optionalArray(params, "domain")
	fields := optionalStringSlice(params, "fields")
	records, count, err := client.SearchRead(ctx, model, domain, fields, searchOptions(params))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"records": records, "count": count}, nil
}

func (d *Dispatcher) opRead(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	fields := optionalStringSlice(params, "fields")
	records, err := client.Read(ctx, model, ids, fields)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"records": records}, nil
}

func (d *Dispatcher) opCreate(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	values, err := requireObject(params, "values")
	if err != nil {
		return nil, err
	}
	id, err := client.Create(ctx, model, values)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": id, "success": true}, nil
}

// MaxCreateBatchRows enforces §4.7/§8's 100-row cap before any wire call.
const MaxCreateBatchRows = erpclient.MaxBatchSize

func (d *Dispatcher) opCreateBatch(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	valuesList, err := requireObjectSlice(params, "values_list")
	if err != nil {
		return nil, err
	}
	if len(valuesList) > MaxCreateBatchRows {
		return nil, &InvalidArgumentError{
			Parameter: "values_list",
			Reason:    fmt.Sprintf("exceeds maximum of %d rows per call", MaxCreateBatchRows),
		}
	}
	ids, err := client.CreateBatch(ctx, model, valuesList)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ids": ids, "created_count": len(ids), "success": true}, nil
}

func (d *Dispatcher) opWrite(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	values, err := requireObject(params, "values")
	if err != nil {
		return nil, err
	}
	success, count, err := client.Write(ctx, model, ids, values)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": success, "updated_count": count}, nil
}

func (d *Dispatcher) opUnlink(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	success, count, err := client.Unlink(ctx, model, ids)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": success, "deleted_count": count}, nil
}

func (d *Dispatcher) opSearchCount(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	domain := optionalArray(params, "domain")
	count, err := client.SearchCount(ctx, model, domain)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": count}, nil
}

func (d *Dispatcher) opExecute(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	method, err := requireString(params, "method")
	if err != nil {
		return nil, err
	}
	args := optionalArray(params, "args")
	kwargs, _ := requireObject(params, "kwargs")
	result, err := client.Execute(ctx, model, method, args, kwargs)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": result}, nil
}

func (d *Dispatcher) opWorkflowAction(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	action, err := requireString(params, "action")
	if err != nil {
		return nil, err
	}
	result, err := client.WorkflowAction(ctx, model, ids, action)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": result, "executed_on": ids}, nil
}

func (d *Dispatcher) opGenerateReport(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return nil, err
	}
	ids, err := requireIntSlice(params, "ids")
	if err != nil {
		return nil, err
	}
	report, err := client.GenerateReport(ctx, name, ids)
	if err != nil {
		return nil, err
	}
	envelope := map[string]interface{}{
		"pdf_base64":  base64.StdEncoding.EncodeToString(report.Bytes),
		"report_name": report.ReportName,
		"record_ids":  ids,
	}
	if report.MimeType != "" && report.MimeType != "application/pdf" {
		envelope["mime_type"] = report.MimeType
	}
	return envelope, nil
}

func (d *Dispatcher) opGetModelMetadata(ctx context.Context, client erpclient.Client, instance string, params map[string]interface{}) (interface{}, error) {
	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	metadata, err := d.cache.Get(ctx, instance, model, func(ctx context.Context) (*erpclient.ModelMetadata, error) {
		return client.GetModelMetadata(ctx, model)
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"model": map[string]interface{}{
		"name":        metadata.Name,
		"description": metadata.Description,
		"fields":      metadata.Fields,
	}}, nil
}

func (d *Dispatcher) opListModels(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	domain := optionalArray(params, "domain")
	limit := optionalInt(params, "limit")
	offset := optionalInt(params, "offset")
	models, err := client.ListModels(ctx, domain, limit, offset)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"models": models}, nil
}

func (d *Dispatcher) opCheckAccess(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	operation, err := requireString(params, "operation")
	if err != nil {
		return nil, err
	}
	ids := optionalIntSlice(params, "ids")

	// Supplemented batch form (SPEC_FULL.md, supplemented feature #4): a "models" array returns a
	// map keyed by model name instead of the single-model envelope.
	if models := optionalStringSlice(params, "models"); len(models) > 0 {
		out := make(map[string]interface{}, len(models))
		for _, model := range models {
			result, err := client.CheckAccess(ctx, model, operation, ids)
			if err != nil {
				return nil, err
			}
			out[model] = accessEnvelope(model, operation, result)
		}
		return out, nil
	}

	model, err := requireString(params, "model")
	if err != nil {
		return nil, err
	}
	result, err := client.CheckAccess(ctx, model, operation, ids)
	if err != nil {
		return nil, err
	}
	return accessEnvelope(model, operation, result), nil
}

func accessEnvelope(model, operation string, result *erpclient.AccessResult) map[string]interface{} {
	return map[string]interface{}{
		"has_access":   result.HasAccess,
		"model":        model,
		"operation":    operation,
		"model_level":  result.ModelLevel,
		"record_level": result.RecordLevel,
	}
}

func (d *Dispatcher) opDatabaseCleanup(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	opts := erpclient.CleanupOptions{
		RemoveTestData:        optionalBool(params, "remove_test_data"),
		RemoveInactiveRecords: optionalBool(params, "remove_inactive_records"),
		CleanupDrafts:         optionalBool(params, "cleanup_drafts"),
		DaysThreshold:         optionalInt(params, "days_threshold"),
		DryRun:                optionalBoolValue(params, "dry_run", false),
	}
	report, err := client.DatabaseCleanup(ctx, opts)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (d *Dispatcher) opDeepCleanup(ctx context.Context, client erpclient.Client, params map[string]interface{}) (interface{}, error) {
	opts := erpclient.DeepCleanupOptions{
		KeepCompanyDefaults: optionalBool(params, "keep_company_defaults"),
		KeepUserAccounts:    optionalBool(params, "keep_user_accounts"),
		DryRun:              optionalBoolValue(params, "dry_run", false),
	}
	report, err := client.DeepCleanup(ctx, opts)
	if err != nil {
		return nil, err
	}
	return report, nil
}
