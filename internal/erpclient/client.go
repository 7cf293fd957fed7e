// Package erpclient implements the two ERP wire dialects (Modern and
// Legacy) behind one capability interface (§4.4).
package erpclient

import (
	"context"
	"time"
)

// SearchOptions bounds and orders a search/search_read call.
type SearchOptions struct {
	Limit  int
	Offset int
	Order  string
}

// AccessResult is check_access's boolean-plus-breakdown shape.
type AccessResult struct {
	HasAccess   bool
	ModelLevel  bool
	RecordLevel bool
}

// ModelSummary is one entry of list_models' result.
type ModelSummary struct {
	ID    int
	Model string
	Name  string
}

// FieldMetadata describes one field of get_model_metadata's result.
type FieldMetadata map[string]interface{}

// ModelMetadata is get_model_metadata's result.
type ModelMetadata struct {
	Name        string
	Description string
	Fields      map[string]FieldMetadata
}

// Report is generate_report's result: raw bytes plus enough context for
// the dispatcher to build the envelope in §6, plus the sniffed MIME
// type supplementary feature.
type Report struct {
	Bytes      []byte
	ReportName string
	MimeType   string
}

// Client is the common capability set every ERP wire dialect
// implements (§4.4). Every method's error, on failure, is an *Error
// with one of the seven kinds in §7.
type Client interface {
	Search(ctx context.Context, model string, domain []interface{}, opts SearchOptions) ([]int, error)
	SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts SearchOptions) ([]map[string]interface{}, int, error)
	Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error)
	Create(ctx context.Context, model string, values map[string]interface{}) (int, error)
	CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error)
	Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error)
	Unlink(ctx context.Context, model string, ids []int) (bool, int, error)
	SearchCount(ctx context.Context, model string, domain []interface{}) (int, error)
	Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error)
	WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error)
	GenerateReport(ctx context.Context, name string, ids []int) (*Report, error)
	GetModelMetadata(ctx context.Context, model string) (*ModelMetadata, error)
	ListModels(ctx context.Context, domain []interface{}, limit, offset int) ([]ModelSummary, error)
	CheckAccess(ctx context.Context, model, operation string, ids []int) (*AccessResult, error)
	DatabaseCleanup(ctx context.Context, opts CleanupOptions) (*CleanupReport, error)
	DeepCleanup(ctx context.Context, opts DeepCleanupOptions) (*DeepCleanupReport, error)
}

// MaxBatchSize is the cap OpDispatcher enforces before ever reaching a
// wire call (§4.4, §8's boundary behavior).
const MaxBatchSize = 100

// DefaultTimeout is the per-call ceiling absent an explicit override (§5).
const DefaultTimeout = 60 * time.Second
