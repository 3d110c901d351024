package dict

import (
	"bufio"
	"io"
	"strings"
)

// AliasMap maps pango lineage aliases to their canonical prefix, e.g.
// "BA" -> "B.1.1.529". Resolving aliases before interning keeps the
// string-prefix relation between lineage names faithful to the lineage tree.
type AliasMap map[string]string

// LoadAliases reads TAB-separated "alias\tcanonical" lines.
func LoadAliases(r io.Reader) (AliasMap, error) {
	m := make(AliasMap)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		alias, canonical, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		m[alias] = canonical
	}
	return m, sc.Err()
}

// Resolve expands the leading alias of a raw lineage name. A name whose first
// dot-separated component is not an alias is returned unchanged.
func (m AliasMap) Resolve(raw string) string {
	if raw == "" {
		return raw
	}
	head, tail, hasTail := strings.Cut(raw, ".")
	canonical, ok := m[head]
	if !ok || canonical == "" {
		return raw
	}
	if !hasTail {
		return canonical
	}
	return canonical + "." + tail
}
