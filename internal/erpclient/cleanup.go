package erpclient

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CleanupOptions gates database_cleanup's per-category sub-operations,
// translated from the original implementation's CleanupOptions.
type CleanupOptions struct {
	RemoveTestData        *bool
	RemoveInactiveRecords *bool
	CleanupDrafts         *bool
	DaysThreshold         int
	DryRun                bool
}

func (o CleanupOptions) daysThreshold() int {
	if o.DaysThreshold > 0 {
		return o.DaysThreshold
	}
	return 180
}

// CleanupDetail is one sub-operation's outcome within a cleanup report.
type CleanupDetail struct {
	Operation       string `json:"operation"`
	Model           string `json:"model"`
	RecordsAffected int    `json:"records_affected"`
	Details         string `json:"details"`
	Status          string `json:"status"` // success|error
}

// CleanupSummary is database_cleanup's per-category record counts.
type CleanupSummary struct {
	TestDataRemoved         int  `json:"test_data_removed"`
	InactiveRecordsArchived int  `json:"inactive_records_archived"`
	DraftsCleaned           int  `json:"drafts_cleaned"`
	OrphanRecordsRemoved    int  `json:"orphan_records_removed"`
	LogsCleaned             int  `json:"logs_cleaned"`
	AttachmentsCleaned      int  `json:"attachments_cleaned"`
	CacheCleared            bool `json:"cache_cleared"`
	TotalRecordsProcessed   int  `json:"total_records_processed"`
}

// CleanupReport is database_cleanup's structured result envelope.
type CleanupReport struct {
	Success  bool            `json:"success"`
	Summary  CleanupSummary  `json:"summary"`
	Details  []CleanupDetail `json:"details"`
	Warnings []string        `json:"warnings"`
	Errors   []string        `json:"errors"`
	DryRun   bool            `json:"dry_run"`
}

// domainStep pairs a model with the domain of records one sub-operation
// acts on.
type domainStep struct {
	model  string
	domain []interface{}
}

func likeDomain(field, pattern string) []interface{} {
	return []interface{}{[]interface{}{field, "like", pattern}}
}

// runCleanupCategory searches each step's domain and applies act to
// the matching ids, producing one detail per non-empty step. A search
// failure aborts the category (returned as err, recorded by the caller
// as a report-level error); an unlink/write failure is instead recorded
// as an "error"-status detail, since it doesn't affect the rest of the
// sweep.
func runCleanupCategory(ctx context.Context, client Client, op string, steps []domainStep, dryRun bool, verbDryRun, verbDone string, act func(model string, ids []int) (bool, error)) (int, []CleanupDetail, error) {
	var details []CleanupDetail
	total := 0
	for _, step := range steps {
		ids, err := client.Search(ctx, step.model, step.domain, SearchOptions{})
		if err != nil {
			return total, details, err
		}
		if len(ids) == 0 {
			continue
		}
		count := len(ids)
		total += count
		if dryRun {
			details = append(details, CleanupDetail{
				Operation: op, Model: step.model, RecordsAffected: count,
				Details: fmt.Sprintf("[DRY RUN] Would %s %d records", verbDryRun, count),
				Status:  "success",
			})
			continue
		}
		ok, actErr := act(step.model, ids)
		status := "success"
		if actErr != nil || !ok {
			status = "error"
		}
		details = append(details, CleanupDetail{
			Operation: op, Model: step.model, RecordsAffected: count,
			Details: fmt.Sprintf("%s %d records", verbDone, count),
			Status:  status,
		})
	}
	return total, details, nil
}

func unlinkAction(ctx context.Context, client Client) func(model string, ids []int) (bool, error) {
	return func(model string, ids []int) (bool, error) {
		ok, _, err := client.Unlink(ctx, model, ids)
		return ok, err
	}
}

func archiveAction(ctx context.Context, client Client) func(model string, ids []int) (bool, error) {
	return func(model string, ids []int) (bool, error) {
		ok, _, err := client.Write(ctx, model, ids, map[string]interface{}{"active": false})
		return ok, err
	}
}

func clearServerCaches(ctx context.Context, client Client) bool {
	if _, err := client.Execute(ctx, "ir.ui.view", "clear_caches", nil, map[string]interface{}{}); err != nil {
		return false
	}
	if _, err := client.Execute(ctx, "ir.session", "clear_session_cache", nil, map[string]interface{}{}); err != nil {
		return false
	}
	return true
}

// runDatabaseCleanup implements database_cleanup's sequential
// sub-operations (test data, inactive records, drafts, orphans, logs,
// attachments, cache), each independently best-effort per §4.4's
// "destructive maintenance" description, translated from the cleanup
// module of the original implementation.
func runDatabaseCleanup(ctx context.Context, client Client, opts CleanupOptions) (*CleanupReport, error) {
	report := &CleanupReport{Success: true, DryRun: opts.DryRun}
	days := opts.daysThreshold()
	cutoff := time.Now().AddDate(0, 0, -days)
	cutoffDate := cutoff.Format("2006-01-02")
	cutoffTimestamp := cutoff.Format(time.RFC3339)

	runOptional := func(enabled bool, op string, steps []domainStep, verbDryRun, verbDone string, act func(model string, ids []int) (bool, error)) int {
		if !enabled {
			return 0
		}
		count, details, err := runCleanupCategory(ctx, client, op, steps, opts.DryRun, verbDryRun, verbDone, act)
		report.Details = append(report.Details, details...)
		if err != nil {
			report.Success = false
			report.Errors = append(report.Errors, err.Error())
		}
		return count
	}

	report.Summary.TestDataRemoved = runOptional(
		boolOrDefault(opts.RemoveTestData, true), "remove_test_data",
		[]domainStep{
			{"res.partner", likeDomain("name", "Test%")},
			{"res.partner", likeDomain("name", "Demo%")},
			{"sale.order", likeDomain("name", "%TEST%")},
			{"account.move", likeDomain("ref", "%TEST%")},
			{"stock.move", likeDomain("origin", "%TEST%")},
		},
		"remove", "Removed", unlinkAction(ctx, client),
	)

	report.Summary.InactiveRecordsArchived = runOptional(
		boolOrDefault(opts.RemoveInactiveRecords, true), "archive_inactive",
		[]domainStep{
			{"res.partner", []interface{}{[]interface{}{"write_date", "<", cutoffDate}, []interface{}{"active", "=", true}}},
			{"sale.order", []interface{}{[]interface{}{"write_date", "<", cutoffDate}, []interface{}{"active", "=", true}}},
			{"account.move", []interface{}{[]interface{}{"write_date", "<", cutoffDate}, []interface{}{"active", "=", true}}},
		},
		"archive", "Archived", archiveAction(ctx, client),
	)

	report.Summary.DraftsCleaned = runOptional(
		boolOrDefault(opts.CleanupDrafts, true), "cleanup_drafts",
		[]domainStep{
			{"sale.order", []interface{}{[]interface{}{"state", "=", "draft"}}},
			{"account.move", []interface{}{[]interface{}{"state", "=", "draft"}}},
			{"purchase.order", []interface{}{[]interface{}{"state", "=", "draft"}}},
		},
		"delete", "Deleted", unlinkAction(ctx, client),
	)

	report.Summary.OrphanRecordsRemoved = runOptional(
		true, "remove_orphans",
		[]domainStep{
			{"sale.order.line", []interface{}{[]interface{}{"order_id", "=", false}}},
			{"account.move.line", []interface{}{[]interface{}{"move_id", "=", false}}},
		},
		"remove", "Removed", unlinkAction(ctx, client),
	)

	report.Summary.LogsCleaned = runOptional(
		true, "cleanup_logs",
		[]domainStep{
			{"mail.message", []interface{}{[]interface{}{"create_date", "<", cutoffTimestamp}}},
			{"mail.activity", []interface{}{[]interface{}{"create_date", "<", cutoffTimestamp}, []interface{}{"state", "=", "done"}}},
		},
		"delete", "Deleted", unlinkAction(ctx, client),
	)

	report.Summary.AttachmentsCleaned = runOptional(
		true, "cleanup_attachments",
		[]domainStep{
			{"ir.attachment", []interface{}{[]interface{}{"create_date", "<", cutoffDate}}},
		},
		"delete", "Deleted", unlinkAction(ctx, client),
	)

	if !opts.DryRun {
		report.Summary.CacheCleared = clearServerCaches(ctx, client)
		if !report.Summary.CacheCleared {
			report.Warnings = append(report.Warnings, "cache clearing failed or partially unsupported on this database")
		}
	}

	report.Summary.TotalRecordsProcessed = report.Summary.TestDataRemoved +
		report.Summary.InactiveRecordsArchived +
		report.Summary.DraftsCleaned +
		report.Summary.OrphanRecordsRemoved +
		report.Summary.LogsCleaned +
		report.Summary.AttachmentsCleaned

	return report, nil
}

// DeepCleanupOptions gates deep_cleanup, which unlike database_cleanup
// has no per-category toggles in the original — only what to retain.
type DeepCleanupOptions struct {
	DryRun               bool
	KeepCompanyDefaults  *bool
	KeepUserAccounts     *bool
}

// DeepCleanupSummary is deep_cleanup's per-category record counts.
type DeepCleanupSummary struct {
	PartnersRemoved      int `json:"partners_removed"`
	SalesOrdersRemoved   int `json:"sales_orders_removed"`
	InvoicesRemoved      int `json:"invoices_removed"`
	PurchaseOrdersRemoved int `json:"purchase_orders_removed"`
	StockMovesRemoved    int `json:"stock_moves_removed"`
	DocumentsRemoved     int `json:"documents_removed"`
	LeadsRemoved         int `json:"leads_removed"`
	OpportunitiesRemoved int `json:"opportunities_removed"`
	ProjectsRemoved      int `json:"projects_removed"`
	TasksRemoved         int `json:"tasks_removed"`
	AttendeesRemoved     int `json:"attendees_removed"`
	EventsRemoved        int `json:"events_removed"`
	JournalsRemoved      int `json:"journals_removed"`
	AccountsRemoved      int `json:"accounts_removed"`
	ProductsRemoved      int `json:"products_removed"`
	EmployeesRemoved     int `json:"employees_removed"`
	DepartmentsRemoved   int `json:"departments_removed"`
	LogsAndAttachments   int `json:"logs_and_attachments"`
	TotalRecordsRemoved  int `json:"total_records_removed"`
}

// DeepCleanupReport is deep_cleanup's structured result envelope.
type DeepCleanupReport struct {
	Success              bool                `json:"success"`
	Summary              DeepCleanupSummary  `json:"summary"`
	Details              []CleanupDetail     `json:"details"`
	Warnings             []string            `json:"warnings"`
	Errors               []string            `json:"errors"`
	DryRun               bool                `json:"dry_run"`
	DefaultDataRetained  []string            `json:"default_data_retained"`
}

// removeAll searches model unconditionally (or by domain) and unlinks
// every match, best-effort: an unlink failure downgrades the detail's
// status but doesn't stop the sweep or surface as a report error,
// mirroring the original's remove_by_domain_best_effort.
func removeAll(ctx context.Context, client Client, model string, domain []interface{}, dryRun bool, label string) (int, []CleanupDetail) {
	ids, err := client.Search(ctx, model, domain, SearchOptions{})
	if err != nil || len(ids) == 0 {
		return 0, nil
	}
	count := len(ids)
	if dryRun {
		return count, []CleanupDetail{{
			Model: model, RecordsAffected: count,
			Details: fmt.Sprintf("[DRY RUN] Would remove %d records (%s)", count, label),
			Status:  "success",
		}}
	}
	ok, _, err := client.Unlink(ctx, model, ids)
	if err != nil || !ok {
		return 0, []CleanupDetail{{Model: model, RecordsAffected: 0, Details: label, Status: "warning"}}
	}
	return count, []CleanupDetail{{Model: model, RecordsAffected: count, Details: label, Status: "success"}}
}

func removePartners(ctx context.Context, client Client, keepDefaults, dryRun bool) (int, []CleanupDetail) {
	domain := []interface{}{}
	if keepDefaults {
		domain = []interface{}{[]interface{}{"name", "!=", "Your Company"}}
	}
	ids, err := client.Search(ctx, "res.partner", domain, SearchOptions{})
	if err != nil || len(ids) == 0 {
		return 0, nil
	}

	toDelete := ids
	if keepDefaults {
		records, err := client.Read(ctx, "res.partner", ids, []string{"id", "name"})
		if err == nil {
			systemNames := []string{"Your Company", "Administrator", "Email Alias", "External IP"}
			filtered := make([]int, 0, len(records))
			for _, rec := range records {
				name, _ := rec["name"].(string)
				if !containsAny(name, systemNames) {
					if id, ok := rec["id"].(int); ok {
						filtered = append(filtered, id)
					} else if id, ok := rec["id"].(float64); ok {
						filtered = append(filtered, int(id))
					}
				}
			}
			toDelete = filtered
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	count := len(toDelete)
	if dryRun {
		return count, []CleanupDetail{{
			Model: "res.partner", RecordsAffected: count,
			Details: fmt.Sprintf("[DRY RUN] Would remove %d partners", count),
			Status:  "success",
		}}
	}
	ok, _, err := client.Unlink(ctx, "res.partner", toDelete)
	status := "success"
	if err != nil || !ok {
		status = "error"
	}
	return count, []CleanupDetail{{
		Model: "res.partner", RecordsAffected: count,
		Details: fmt.Sprintf("Removed %d partners (kept defaults: %v)", count, keepDefaults),
		Status:  status,
	}}
}

func containsAny(name string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// identifyDeepCleanupDefaults reports which baseline records deep
// cleanup left in place, mirroring the original's identify_default_data.
func identifyDeepCleanupDefaults(ctx context.Context, client Client) []string {
	var defaults []string
	check := func(model string, domain []interface{}, label string) {
		ids, err := client.Search(ctx, model, domain, SearchOptions{Limit: 1})
		if err == nil && len(ids) > 0 {
			defaults = append(defaults, label)
		}
	}
	check("res.company", nil, "Default company retained")
	check("res.users", []interface{}{[]interface{}{"id", "=", 2}}, "Admin user retained")
	check("ir.ui.menu", nil, "Menu structure retained")
	check("res.groups", nil, "User groups retained")
	defaults = append(defaults, "Module structure intact", "System configuration retained")
	return defaults
}

// runDeepCleanup implements deep_cleanup's near-total data wipe across
// every business model, retaining only what options ask to keep,
// translated from the deep-cleanup module of the original
// implementation. Every category is best-effort: a failure in one
// model doesn't stop the sweep.
func runDeepCleanup(ctx context.Context, client Client, opts DeepCleanupOptions) (*DeepCleanupReport, error) {
	report := &DeepCleanupReport{Success: true, DryRun: opts.DryRun}
	keepDefaults := boolOrDefault(opts.KeepCompanyDefaults, true)
	keepUsers := boolOrDefault(opts.KeepUserAccounts, true)

	add := func(count int, details []CleanupDetail) int {
		report.Details = append(report.Details, details...)
		return count
	}

	report.Summary.PartnersRemoved = add(removePartners(ctx, client, keepDefaults, opts.DryRun))
	report.Summary.SalesOrdersRemoved = add(removeAll(ctx, client, "sale.order", nil, opts.DryRun, "Removed sales orders"))
	report.Summary.DocumentsRemoved += report.Summary.SalesOrdersRemoved
	report.Summary.InvoicesRemoved = add(removeAll(ctx, client, "account.move", nil, opts.DryRun, "Removed invoices/moves"))
	report.Summary.JournalsRemoved = add(removeAll(ctx, client, "account.journal",
		[]interface{}{[]interface{}{"type", "not in", []interface{}{"general", "situation"}}}, opts.DryRun, "Removed custom journals (best effort)"))
	report.Summary.AccountsRemoved = add(removeAll(ctx, client, "account.account",
		[]interface{}{[]interface{}{"code", "not ilike", "1%"}}, opts.DryRun, "Removed custom accounts (best effort)"))
	report.Summary.PurchaseOrdersRemoved = add(removeAll(ctx, client, "purchase.order", nil, opts.DryRun, "Removed purchase orders"))
	report.Summary.StockMovesRemoved = add(removeAll(ctx, client, "stock.move", nil, opts.DryRun, "Removed stock moves (best effort)"))
	report.Summary.ProductsRemoved = add(removeAll(ctx, client, "product.product",
		[]interface{}{[]interface{}{"create_date", "!=", false}}, opts.DryRun, "Removed products (best effort)"))
	report.Summary.LeadsRemoved = add(removeAll(ctx, client, "crm.lead",
		[]interface{}{[]interface{}{"type", "=", "lead"}}, opts.DryRun, "Removed leads"))
	report.Summary.OpportunitiesRemoved = add(removeAll(ctx, client, "crm.lead",
		[]interface{}{[]interface{}{"type", "=", "opportunity"}}, opts.DryRun, "Removed opportunities"))
	report.Summary.TasksRemoved = add(removeAll(ctx, client, "project.task", nil, opts.DryRun, "Removed tasks"))
	report.Summary.ProjectsRemoved = add(removeAll(ctx, client, "project.project", nil, opts.DryRun, "Removed projects"))
	report.Summary.EventsRemoved = add(removeAll(ctx, client, "calendar.event", nil, opts.DryRun, "Removed calendar events"))
	report.Summary.AttendeesRemoved = add(removeAll(ctx, client, "calendar.attendee", nil, opts.DryRun, "Removed calendar attendees"))

	employeeDomain := []interface{}{}
	if keepUsers {
		employeeDomain = []interface{}{[]interface{}{"user_id", "=", false}}
	}
	report.Summary.EmployeesRemoved = add(removeAll(ctx, client, "hr.employee", employeeDomain, opts.DryRun, "Removed employees"))
	report.Summary.DepartmentsRemoved = add(removeAll(ctx, client, "hr.department",
		[]interface{}{[]interface{}{"parent_id", "!=", false}}, opts.DryRun, "Removed departments (except root)"))

	logs := add(removeAll(ctx, client, "mail.message", nil, opts.DryRun, "Removed mail messages"))
	acts := add(removeAll(ctx, client, "mail.activity", nil, opts.DryRun, "Removed mail activities"))
	atts := add(removeAll(ctx, client, "ir.attachment", nil, opts.DryRun, "Removed attachments"))
	report.Summary.LogsAndAttachments = logs + acts + atts

	report.Summary.TotalRecordsRemoved = report.Summary.PartnersRemoved +
		report.Summary.SalesOrdersRemoved +
		report.Summary.InvoicesRemoved +
		report.Summary.PurchaseOrdersRemoved +
		report.Summary.StockMovesRemoved +
		report.Summary.LeadsRemoved +
		report.Summary.OpportunitiesRemoved +
		report.Summary.ProjectsRemoved +
		report.Summary.TasksRemoved +
		report.Summary.EventsRemoved +
		report.Summary.AttendeesRemoved +
		report.Summary.JournalsRemoved +
		report.Summary.AccountsRemoved +
		report.Summary.ProductsRemoved +
		report.Summary.EmployeesRemoved +
		report.Summary.DepartmentsRemoved +
		report.Summary.LogsAndAttachments

	report.DefaultDataRetained = identifyDeepCleanupDefaults(ctx, client)
	if !opts.DryRun {
		report.Warnings = append(report.Warnings, "all non-essential data has been removed; a backup was recommended before this operation")
	}

	return report, nil
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
