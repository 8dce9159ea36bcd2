package tiledrop

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRegex = regexp.MustCompile(`\{[a-z]+\}`)

// PathTemplate is a tile path pattern such as "{z}/{x}/{y}.mvt". The fetch and
// download paths are configured independently and may order x and y
// differently.
type PathTemplate struct {
	raw   string
	re    *regexp.Regexp
	order [3]string
}

func NewPathTemplate(tmpl string) (*PathTemplate, error) {
	tmpl = strings.TrimPrefix(tmpl, "/")
	if tmpl == "" {
		return nil, fmt.Errorf("empty path template")
	}

	var pattern strings.Builder
	var order [3]string
	seen := map[string]bool{}
	n := 0
	last := 0

	for _, loc := range placeholderRegex.FindAllStringIndex(tmpl, -1) {
		name := tmpl[loc[0]+1 : loc[1]-1]
		switch name {
		case "z", "x", "y":
		default:
			return nil, fmt.Errorf("path template %q: unknown placeholder {%s}", tmpl, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("path template %q: {%s} appears more than once", tmpl, name)
		}
		seen[name] = true

		pattern.WriteString(regexp.QuoteMeta(tmpl[last:loc[0]]))
		pattern.WriteString(`(\d+)`)
		order[n] = name
		n++
		last = loc[1]
	}
	pattern.WriteString(regexp.QuoteMeta(tmpl[last:]))

	if n != 3 {
		return nil, fmt.Errorf("path template %q must contain {z}, {x} and {y}", tmpl)
	}

	re, err := regexp.Compile(`(?:^|/)` + pattern.String() + `$`)
	if err != nil {
		return nil, fmt.Errorf("path template %q: %w", tmpl, err)
	}

	return &PathTemplate{raw: tmpl, re: re, order: order}, nil
}

// MustPathTemplate is NewPathTemplate for templates known at compile time.
func MustPathTemplate(tmpl string) *PathTemplate {
	t, err := NewPathTemplate(tmpl)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *PathTemplate) String() string {
	return t.raw
}

// Ext is the file extension of the template without the dot.
func (t *PathTemplate) Ext() string {
	return strings.TrimPrefix(path.Ext(t.raw), ".")
}

func (t *PathTemplate) Expand(addr TileAddress) string {
	return strings.NewReplacer(
		"{x}", strconv.Itoa(addr.X),
		"{y}", strconv.Itoa(addr.Y),
		"{z}", strconv.Itoa(addr.Zoom)).Replace(t.raw)
}

// Match extracts an address from the end of a request path.
func (t *PathTemplate) Match(p string) (TileAddress, bool) {
	match := t.re.FindStringSubmatch(p)
	if match == nil {
		return TileAddress{}, false
	}

	var addr TileAddress
	for i, name := range t.order {
		v, err := strconv.Atoi(match[i+1])
		if err != nil {
			return TileAddress{}, false
		}
		switch name {
		case "z":
			addr.Zoom = v
		case "x":
			addr.X = v
		case "y":
			addr.Y = v
		}
	}

	return addr, true
}
