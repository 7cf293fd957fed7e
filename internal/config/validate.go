package config

import (
	"fmt"
	"strings"
)

// validateInstances enforces §3's InstanceDescriptor invariants: unique
// non-empty names, a normalizable URL, db required when version < 19,
// and the credential set matching the version present (apiKey for
// modern, username/password for legacy). Carrying the other set as well
// is not rejected.
func validateInstances(doc *InstancesDocument) error {
	seen := map[string]bool{}
	for i := range doc.Instances {
		inst := &doc.Instances[i]
		if inst.Name == "" {
			return fmt.Errorf("instance at index %d has empty name", i)
		}
		if seen[inst.Name] {
			return fmt.Errorf("duplicate instance name %q", inst.Name)
		}
		seen[inst.Name] = true

		normalized, err := NormalizeURL(inst.URL)
		if err != nil {
			return fmt.Errorf("instance %q: %w", inst.Name, err)
		}
		inst.URL = normalized

		legacy := inst.Legacy()
		if legacy && inst.DB == "" {
			return fmt.Errorf("instance %q: db is required for version < 19", inst.Name)
		}

		hasModern := inst.APIKey != "" || inst.KeyringRef != ""
		hasLegacy := inst.Username != "" && (inst.Password != "" || inst.KeyringRef != "")
		switch {
		case legacy && !hasLegacy:
			return fmt.Errorf("instance %q: legacy credentials (username/password) are required", inst.Name)
		case !legacy && !hasModern:
			return fmt.Errorf("instance %q: modern credentials (apiKey) are required", inst.Name)
		}
	}
	return nil
}

// validGuardPrefixes are the only recognized guard predicate forms (§3).
var validGuardPrefixes = []string{"requiresEnvTrue:", "requiresEnv:"}

func validateGuard(guard string) error {
	for _, prefix := range validGuardPrefixes {
		if strings.HasPrefix(guard, prefix) && len(guard) > len(prefix) {
			return nil
		}
	}
	return fmt.Errorf("unrecognized guard %q", guard)
}

// validateTools enforces unique tool names (in declared order, which
// Registry preserves for tools/list), valid op kinds, and schema rules.
func validateTools(doc *ToolsDocument) error {
	seen := map[string]bool{}
	for i := range doc.Tools {
		t := &doc.Tools[i]
		if t.Name == "" || t.Name != strings.ToLower(t.Name) {
			return fmt.Errorf("tool at index %d: name must be a non-empty lowercase identifier", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tool name %q", t.Name)
		}
		seen[t.Name] = true

		if !validOpKinds[t.Op.Type] {
			return fmt.Errorf("tool %q: unknown op type %q", t.Name, t.Op.Type)
		}
		if err := validateInputSchema(t.InputSchema); err != nil {
			return fmt.Errorf("tool %q: %w", t.Name, err)
		}
		for _, g := range t.Guards {
			if err := validateGuard(g); err != nil {
				return fmt.Errorf("tool %q: %w", t.Name, err)
			}
		}
	}
	return nil
}

// validatePrompts enforces unique, non-empty prompt names.
func validatePrompts(doc *PromptsDocument) error {
	seen := map[string]bool{}
	for i := range doc.Prompts {
		p := &doc.Prompts[i]
		if p.Name == "" {
			return fmt.Errorf("prompt at index %d has empty name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate prompt name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// validateServer enforces a non-empty serverName.
func validateServer(doc *ServerMetadata) error {
	if doc.ServerName == "" {
		return fmt.Errorf("serverName is required")
	}
	return nil
}
