package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// guard is a compiled boolean predicate over the live process settings
// map, evaluated fresh on every tools/list and tools/call (§4.3): a
// tool's visibility is never frozen at load time.
type guard struct {
	source  string
	program *vm.Program
}

// guardEnv is the expr-lang evaluation environment. Lower is exposed as
// a builtin function so guard expressions can normalize case inline.
type guardEnv struct {
	Settings map[string]string
	Lower    func(string) string
}

func newGuardEnv(settings map[string]string) guardEnv {
	return guardEnv{Settings: settings, Lower: strings.ToLower}
}

// compileGuard turns one of the two recognized guard forms into an
// expr-lang boolean program:
//
//	requiresEnvTrue:NAME   -> Settings["NAME"] is "1"/"true"/"yes" (case-insensitive)
//	requiresEnv:NAME       -> Settings["NAME"] is non-empty
func compileGuard(raw string) (*guard, error) {
	var src string
	switch {
	case strings.HasPrefix(raw, "requiresEnvTrue:"):
		name := strconv.Quote(strings.TrimPrefix(raw, "requiresEnvTrue:"))
		src = fmt.Sprintf(
			`Settings[%s] == "1" or Lower(Settings[%s]) == "true" or Lower(Settings[%s]) == "yes"`,
			name, name, name,
		)
	case strings.HasPrefix(raw, "requiresEnv:"):
		name := strconv.Quote(strings.TrimPrefix(raw, "requiresEnv:"))
		src = fmt.Sprintf(`Settings[%s] != ""`, name)
	default:
		return nil, fmt.Errorf("registry: unrecognized guard %q", raw)
	}

	program, err := expr.Compile(src, expr.Env(guardEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("registry: compile guard %q: %w", raw, err)
	}
	return &guard{source: raw, program: program}, nil
}

func (g *guard) eval(settings map[string]string) (bool, error) {
	out, err := expr.Run(g.program, newGuardEnv(settings))
	if err != nil {
		return false, fmt.Errorf("registry: eval guard %q: %w", g.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("registry: guard %q did not evaluate to bool", g.source)
	}
	return b, nil
}

// evalAll reports whether every guard passes against settings. A tool
// or prompt with no guards is always visible.
func evalAll(guards []*guard, settings map[string]string) (bool, error) {
	for _, g := range guards {
		ok, err := g.eval(settings)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
