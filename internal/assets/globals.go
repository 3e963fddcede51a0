package assets

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/wolfeidau/sitepack/internal/buildconfig"
	"github.com/wolfeidau/sitepack/internal/util"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// globalsShim turns the provide-globals plugin into an injected module. esbuild replaces
// every free reference to an exported name with an import of the shim, so each module
// ends up importing the shared library explicitly. Dotted names such as window.jQuery
// become defines pointing at one of the exported identifiers.
type globalsShim struct {
	Source  string
	Defines map[string]string
}

func newGlobalsShim(opts *buildconfig.GlobalsOptions) (*globalsShim, error) {
	if opts == nil || len(opts.Symbols) == 0 {
		return nil, nil
	}

	modules := map[string][]string{}
	defines := map[string]string{}
	var dotted []string
	for _, name := range opts.Names() {
		module := opts.Symbols[name]
		switch {
		case identifierPattern.MatchString(name):
			modules[module] = append(modules[module], name)
		case strings.Contains(name, "."):
			dotted = append(dotted, name)
		default:
			return nil, fmt.Errorf("provide-globals: %q is not an identifier", name)
		}
	}

	for _, name := range dotted {
		module := opts.Symbols[name]
		if len(modules[module]) == 0 {
			modules[module] = append(modules[module], fmt.Sprintf("__sitepack_global_%d", len(defines)))
		}
		defines[name] = modules[module][0]
	}

	var b strings.Builder
	i := 0
	for _, module := range slices.Sorted(maps.Keys(modules)) {
		local := fmt.Sprintf("__sitepack_lib_%d", i)
		fmt.Fprintf(&b, "import %s from %q;\n", local, module)
		exports := make([]string, 0, len(modules[module]))
		for _, name := range modules[module] {
			exports = append(exports, local+" as "+name)
		}
		fmt.Fprintf(&b, "export { %s };\n", strings.Join(exports, ", "))
		i++
	}

	return &globalsShim{Source: b.String(), Defines: defines}, nil
}

// write stores the shim in dir under a name derived from its source and returns the
// path. The file is renamed into place and never removed, so builds sharing dir can
// run concurrently.
func (g *globalsShim) write(dir string) (string, error) {
	path := filepath.Join(dir, "globals-"+util.Checksum([]byte(g.Source))+".js")
	if existing, err := os.ReadFile(path); err == nil && string(existing) == g.Source {
		return path, nil
	}

	tmp, err := os.CreateTemp(dir, "globals-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to write globals shim: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(g.Source); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write globals shim: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write globals shim: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write globals shim: %w", err)
	}
	return path, nil
}
