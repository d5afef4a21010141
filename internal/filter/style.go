package filter

import "strings"

type declaration struct {
	prop  string
	value string
}

// parseStyle splits an inline style attribute into declarations, keeping
// their order. Malformed entries without a colon are dropped.
func parseStyle(s string) []declaration {
	var decls []declaration
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		decls = append(decls, declaration{prop: prop, value: value})
	}
	return decls
}

// withProps overrides or appends each declaration in props
func withProps(decls []declaration, props []declaration) []declaration {
	out := append([]declaration(nil), decls...)
	for _, p := range props {
		replaced := false
		for i := range out {
			if out[i].prop == p.prop {
				out[i].value = p.value
				replaced = true
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

func formatStyle(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.prop+": "+d.value+";")
	}
	return strings.Join(parts, " ")
}
