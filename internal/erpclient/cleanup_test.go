package erpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCleanupClient is a minimal in-memory Client used to exercise
// runDatabaseCleanup/runDeepCleanup's business logic without a wire
// dialect. Only the methods cleanup actually calls (Search, Read,
// Write, Unlink, Execute) do anything interesting.
type fakeCleanupClient struct {
	idsByModel    map[string][]int
	readByModel   map[string][]map[string]interface{}
	failUnlink    map[string]bool
	failSearch    map[string]bool
	failExecute   bool
	unlinkedIDs   map[string][]int
	writtenValues map[string]map[string]interface{}
}

func newFakeCleanupClient() *fakeCleanupClient {
	return &fakeCleanupClient{
		idsByModel:    map[string][]int{},
		readByModel:   map[string][]map[string]interface{}{},
		failUnlink:    map[string]bool{},
		failSearch:    map[string]bool{},
		unlinkedIDs:   map[string][]int{},
		writtenValues: map[string]map[string]interface{}{},
	}
}

func (f *fakeCleanupClient) Search(ctx context.Context, model string, domain []interface{}, opts SearchOptions) ([]int, error) {
	if f.failSearch[model] {
		return nil, &Error{Kind: KindServerFault, Message: "search failed"}
	}
	return f.idsByModel[model], nil
}
func (f *fakeCleanupClient) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, opts SearchOptions) ([]map[string]interface{}, int, error) {
	return nil, 0, nil
}
func (f *fakeCleanupClient) Read(ctx context.Context, model string, ids []int, fields []string) ([]map[string]interface{}, error) {
	return f.readByModel[model], nil
}
func (f *fakeCleanupClient) Create(ctx context.Context, model string, values map[string]interface{}) (int, error) {
	return 0, nil
}
func (f *fakeCleanupClient) CreateBatch(ctx context.Context, model string, valuesList []map[string]interface{}) ([]int, error) {
	return nil, nil
}
func (f *fakeCleanupClient) Write(ctx context.Context, model string, ids []int, values map[string]interface{}) (bool, int, error) {
	f.writtenValues[model] = values
	return true, len(ids), nil
}
func (f *fakeCleanupClient) Unlink(ctx context.Context, model string, ids []int) (bool, int, error) {
	f.unlinkedIDs[model] = ids
	if f.failUnlink[model] {
		return false, 0, nil
	}
	return true, len(ids), nil
}
func (f *fakeCleanupClient) SearchCount(ctx context.Context, model string, domain []interface{}) (int, error) {
	return 0, nil
}
func (f *fakeCleanupClient) Execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if f.failExecute {
		return nil, &Error{Kind: KindServerFault, Message: "execute failed"}
	}
	return nil, nil
}
func (f *fakeCleanupClient) WorkflowAction(ctx context.Context, model string, ids []int, action string) (interface{}, error) {
	return nil, nil
}
func (f *fakeCleanupClient) GenerateReport(ctx context.Context, name string, ids []int) (*Report, error) {
	return nil, nil
}
func (f *fakeCleanupClient) GetModelMetadata(ctx context.Context, model string) (*ModelMetadata, error) {
	return nil, nil
}
func (f *fakeCleanupClient) ListModels(ctx context.Context, domain []interface{}, limit, offset int) ([]ModelSummary, error) {
	return nil, nil
}
func (f *fakeCleanupClient) CheckAccess(ctx context.Context, model, operation string, ids []int) (*AccessResult, error) {
	return nil, nil
}
func (f *fakeCleanupClient) DatabaseCleanup(ctx context.Context, opts CleanupOptions) (*CleanupReport, error) {
	return runDatabaseCleanup(ctx, f, opts)
}
func (f *fakeCleanupClient) DeepCleanup(ctx context.Context, opts DeepCleanupOptions) (*DeepCleanupReport, error) {
	return runDeepCleanup(ctx, f, opts)
}

func TestRunDatabaseCleanupRemovesTestDataAndTracksSummary(t *testing.T) {
	client := newFakeCleanupClient()
	// stock.move appears in exactly one remove_test_data domain step, so
	// its count isn't doubled the way res.partner's would be (it's
	// targeted by both the Test% and Demo% steps).
	client.idsByModel["stock.move"] = []int{1, 2}

	report, err := runDatabaseCleanup(context.Background(), client, CleanupOptions{})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Summary.TestDataRemoved)
	assert.Equal(t, []int{1, 2}, client.unlinkedIDs["stock.move"])
	assert.True(t, report.Summary.CacheCleared)
	assert.Equal(t, report.Summary.TestDataRemoved, report.Summary.TotalRecordsProcessed)
}

func TestRunDatabaseCleanupDryRunTouchesNothing(t *testing.T) {
	client := newFakeCleanupClient()
	client.idsByModel["stock.move"] = []int{1, 2, 3}

	report, err := runDatabaseCleanup(context.Background(), client, CleanupOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Summary.TestDataRemoved)
	assert.Nil(t, client.unlinkedIDs["stock.move"])
	assert.False(t, report.Summary.CacheCleared)
	for _, d := range report.Details {
		assert.Contains(t, d.Details, "DRY RUN")
	}
}

func TestRunDatabaseCleanupSkipsDisabledCategories(t *testing.T) {
	client := newFakeCleanupClient()
	client.idsByModel["res.partner"] = []int{1}
	client.idsByModel["sale.order"] = []int{2} // drafts

	no := false
	report, err := runDatabaseCleanup(context.Background(), client, CleanupOptions{
		RemoveTestData: &no,
		CleanupDrafts:  &no,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Summary.TestDataRemoved)
	assert.Equal(t, 0, report.Summary.DraftsCleaned)
}

func TestRunDatabaseCleanupSearchFailureIsReportedNotFatal(t *testing.T) {
	client := newFakeCleanupClient()
	client.failSearch["res.partner"] = true

	report, err := runDatabaseCleanup(context.Background(), client, CleanupOptions{})
	require.NoError(t, err)
	assert.False(t, report.Success)
	require.NotEmpty(t, report.Errors)
}

func TestRunDatabaseCleanupUnlinkFailureMarksDetailErrorButContinues(t *testing.T) {
	client := newFakeCleanupClient()
	client.idsByModel["res.partner"] = []int{1}
	client.failUnlink["res.partner"] = true

	report, err := runDatabaseCleanup(context.Background(), client, CleanupOptions{})
	require.NoError(t, err)
	assert.True(t, report.Success) // unlink failures don't flip the top-level flag
	found := false
	for _, d := range report.Details {
		if d.Model == "res.partner" && d.Operation == "remove_test_data" {
			assert.Equal(t, "error", d.Status)
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunDeepCleanupKeepsSystemPartnersByDefault(t *testing.T) {
	client := newFakeCleanupClient()
	client.idsByModel["res.partner"] = []int{1, 2, 3}
	client.readByModel["res.partner"] = []map[string]interface{}{
		{"id": float64(1), "name": "Your Company"},
		{"id": float64(2), "name": "Acme Corp"},
		{"id": float64(3), "name": "Administrator"},
	}

	report, err := runDeepCleanup(context.Background(), client, DeepCleanupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.PartnersRemoved)
	assert.Equal(t, []int{2}, client.unlinkedIDs["res.partner"])
}

func TestRunDeepCleanupWithoutKeepDefaultsRemovesAllPartners(t *testing.T) {
	client := newFakeCleanupClient()
	client.idsByModel["res.partner"] = []int{1, 2, 3}

	no := false
	report, err := runDeepCleanup(context.Background(), client, DeepCleanupOptions{KeepCompanyDefaults: &no})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.PartnersRemoved)
}

func TestRunDeepCleanupReportsRetainedDefaultsAndWarns(t *testing.T) {
	client := newFakeCleanupClient()
	client.idsByModel["res.company"] = []int{1}
	client.idsByModel["res.users"] = []int{2}

	report, err := runDeepCleanup(context.Background(), client, DeepCleanupOptions{})
	require.NoError(t, err)
	assert.Contains(t, report.DefaultDataRetained, "Default company retained")
	assert.Contains(t, report.DefaultDataRetained, "Admin user retained")
	assert.NotEmpty(t, report.Warnings)
}

func TestRunDeepCleanupDryRunSetsFlagAndSkipsWarning(t *testing.T) {
	client := newFakeCleanupClient()

	report, err := runDeepCleanup(context.Background(), client, DeepCleanupOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Empty(t, report.Warnings)
}
