package config

// seedInstances is written to instances.json the first time it is read
// and no file exists yet. It deliberately contains no instance entries;
// operators add their own via the config UI or by editing the file.
func seedInstances() *InstancesDocument {
	return &InstancesDocument{Instances: []InstanceDescriptor{}}
}

// seedTools is the default tool set: search_read, read, create, write and
// unlink, plus the two destructive maintenance tools, which stay invisible until
// ODOO_ENABLE_CLEANUP_TOOLS is set (§8 scenario 1).
func seedTools() *ToolsDocument {
	obj := func(props map[string]interface{}, required ...string) map[string]interface{} {
		s := map[string]interface{}{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			s["required"] = required
		}
		return s
	}
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}
	integer := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "integer", "description": desc}
	}
	boolean := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "boolean", "description": desc}
	}
	array := func(desc string, items map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{"type": "array", "description": desc, "items": items}
	}
	anyType := map[string]interface{}{"type": "string"}

	return &ToolsDocument{Tools: []ToolDescriptor{
		{
			Name:        "search_read",
			Description: "Search and read records from an ERP model in one call.",
			InputSchema: obj(map[string]interface{}{
				"instance": str("target instance name, default \"default\""),
				"model":    str("ERP model name, e.g. res.partner"),
				"domain":   array("search domain", anyType),
				"fields":   array("fields to return", map[string]interface{}{"type": "string"}),
				"limit":    integer("max records"),
				"offset":   integer("offset into the result set"),
				"order":    str("sort order"),
			}, "model"),
			Op: OpBinding{Type: OpSearchRead, Map: map[string]string{
				"instance": "/instance", "model": "/model", "domain": "/domain",
				"fields": "/fields", "limit": "/limit", "offset": "/offset", "order": "/order",
			}},
		},
		{
			Name:        "read",
			Description: "Fetch ERP records by primary key.",
			InputSchema: obj(map[string]interface{}{
				"instance": str("target instance name"),
				"model":    str("ERP model name"),
				"ids":      array("record ids", map[string]interface{}{"type": "integer"}),
				"fields":   array("fields to return", map[string]interface{}{"type": "string"}),
			}, "model", "ids"),
			Op: OpBinding{Type: OpRead, Map: map[string]string{
				"instance": "/instance", "model": "/model", "ids": "/ids", "fields": "/fields",
			}},
		},
		{
			Name:        "create",
			Description: "Create a single ERP record.",
			InputSchema: obj(map[string]interface{}{
				"instance": str("target instance name"),
				"model":    str("ERP model name"),
				"values":   map[string]interface{}{"type": "object", "description": "field values"},
			}, "model", "values"),
			Op: OpBinding{Type: OpCreate, Map: map[string]string{
				"instance": "/instance", "model": "/model", "values": "/values",
			}},
		},
		{
			Name:        "write",
			Description: "Update ERP records.",
			InputSchema: obj(map[string]interface{}{
				"instance": str("target instance name"),
				"model":    str("ERP model name"),
				"ids":      array("record ids", map[string]interface{}{"type": "integer"}),
				"values":   map[string]interface{}{"type": "object", "description": "field values"},
			}, "model", "ids", "values"),
			Op: OpBinding{Type: OpWrite, Map: map[string]string{
				"instance": "/instance", "model": "/model", "ids": "/ids", "values": "/values",
			}},
		},
		{
			Name:        "unlink",
			Description: "Delete ERP records.",
			InputSchema: obj(map[string]interface{}{
				"instance": str("target instance name"),
				"model":    str("ERP model name"),
				"ids":      array("record ids", map[string]interface{}{"type": "integer"}),
			}, "model", "ids"),
			Op: OpBinding{Type: OpUnlink, Map: map[string]string{
				"instance": "/instance", "model": "/model", "ids": "/ids",
			}},
		},
		{
			Name:        "database_cleanup",
			Description: "Run destructive database cleanup maintenance.",
			InputSchema: obj(map[string]interface{}{
				"instance":                str("target instance name"),
				"remove_test_data":        boolean("remove records matching test/demo naming patterns, default true"),
				"remove_inactive_records": boolean("archive records inactive past days_threshold, default true"),
				"cleanup_drafts":           boolean("delete draft sales/purchase orders and journal entries, default true"),
				"days_threshold":           integer("age in days past which inactive records and logs are swept, default 180"),
				"dry_run":                  boolean("report what would be removed without making changes, default false"),
			}),
			Op: OpBinding{Type: OpDatabaseCleanup, Map: map[string]string{
				"instance": "/instance", "remove_test_data": "/remove_test_data",
				"remove_inactive_records": "/remove_inactive_records", "cleanup_drafts": "/cleanup_drafts",
				"days_threshold": "/days_threshold", "dry_run": "/dry_run",
			}},
			Guards: []string{"requiresEnvTrue:ODOO_ENABLE_CLEANUP_TOOLS"},
		},
		{
			Name:        "deep_cleanup",
			Description: "Run deep destructive database cleanup maintenance.",
			InputSchema: obj(map[string]interface{}{
				"instance":              str("target instance name"),
				"keep_company_defaults": boolean("retain the default company and its partner record, default true"),
				"keep_user_accounts":    boolean("retain employees linked to a user account, default true"),
				"dry_run":               boolean("report what would be removed without making changes, default false"),
			}),
			Op: OpBinding{Type: OpDeepCleanup, Map: map[string]string{
				"instance": "/instance", "keep_company_defaults": "/keep_company_defaults",
				"keep_user_accounts": "/keep_user_accounts", "dry_run": "/dry_run",
			}},
			Guards: []string{"requiresEnvTrue:ODOO_ENABLE_CLEANUP_TOOLS"},
		},
	}}
}

func seedPrompts() *PromptsDocument {
	return &PromptsDocument{Prompts: []PromptDescriptor{
		{
			Name:        "erp_overview",
			Description: "Orientation prompt describing how to use the ERP tools.",
			Content: "You have access to tools that read and write records in an ERP " +
				"system. Always confirm the target instance and model before issuing a " +
				"write, unlink, or cleanup call; those tools have side effects that are " +
				"not rolled back if you cancel the request.",
		},
	}}
}

func seedServer() *ServerMetadata {
	return &ServerMetadata{
		ServerName:             "odoo-mcp",
		Instructions:           "This server exposes an ERP backend as MCP tools, prompts, and resources.",
		ProtocolVersionDefault: "2024-11-05",
		Extra:                  map[string]interface{}{},
	}
}
