package config

import (
	"os"
	"strconv"
	"time"
)

// RecognizedSettings lists every process setting name §6 defines. Guard
// evaluation and the config-API auth toggles only ever look at names
// from this set, but the underlying read is always live (os.Getenv),
// never cached, so a setting flipped mid-process (e.g. via the config
// UI rewriting the process environment is out of scope, but tests and
// wrapper scripts may still mutate os.Environ) takes effect on the very
// next call — Registry guards are evaluated per call, not frozen at
// load time (§4.3, §9).
var RecognizedSettings = []string{
	"ODOO_INSTANCES", "ODOO_INSTANCES_JSON",
	"ODOO_URL", "ODOO_DB", "ODOO_API_KEY", "ODOO_USERNAME", "ODOO_PASSWORD", "ODOO_VERSION",
	"ODOO_ENABLE_CLEANUP_TOOLS", "ODOO_METADATA_CACHE_TTL_SECS",
	"MCP_TOOLS_JSON", "MCP_PROMPTS_JSON", "MCP_SERVER_JSON",
	"MCP_AUTH_ENABLED", "MCP_AUTH_TOKEN",
	"CONFIG_UI_USERNAME", "CONFIG_UI_PASSWORD",
	"ODOO_CONFIG_DIR", "ODOO_CONFIG_SERVER_PORT",
	"ODOO_CONFIG_USE_KEYRING",
}

// LiveSettings returns a fresh snapshot of every recognized process
// setting's current value. Guard predicates (internal/registry) are
// compiled once but evaluated against a new LiveSettings() map on
// every tools/list and tools/call, per §4.3's "evaluated per call" rule.
func LiveSettings() map[string]string {
	out := make(map[string]string, len(RecognizedSettings))
	for _, name := range RecognizedSettings {
		out[name] = os.Getenv(name)
	}
	return out
}

// MetadataCacheTTL reads ODOO_METADATA_CACHE_TTL_SECS, defaulting to
// 3600s per §4.6.
func MetadataCacheTTL() time.Duration {
	if raw := os.Getenv("ODOO_METADATA_CACHE_TTL_SECS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 3600 * time.Second
}

// ConfigDir reads ODOO_CONFIG_DIR, defaulting to "./config".
func ConfigDir() string {
	if dir := os.Getenv("ODOO_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}
