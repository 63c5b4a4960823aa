package schema

import (
	"net/url"
	"regexp"
	"strings"
)

// Match is the result of resolving a request path against the index.
type Match struct {
	// Entry is the matched route entry.
	Entry *RouteEntry

	// Params holds the unescaped path parameter values keyed by name.
	Params map[string]string
}

// segment is one "/"-separated piece of a path template: a literal, a whole
// segment parameter, or a mixed segment matched with a regexp.
type segment struct {
	literal string
	param   string
	pattern *regexp.Regexp
	names   []string
}

// route groups every method registered under one path template.
type route struct {
	template    string
	segments    []segment
	specificity int
	methods     map[string]*RouteEntry
}

// Matcher resolves actual request paths to route entries. Routes are kept as
// an ordered list and scanned linearly; the winner is the candidate with the
// most literal segments, and ties keep the first registered template.
type Matcher struct {
	basePath string
	routes   []*route
	byPath   map[string]*route
}

func newMatcher(basePath string) *Matcher {
	return &Matcher{
		basePath: basePath,
		byPath:   make(map[string]*route),
	}
}

// add registers an entry. Entries sharing a template share one route.
func (m *Matcher) add(entry *RouteEntry) error {
	rt, ok := m.byPath[entry.PathTemplate]
	if !ok {
		segs, spec, err := compileTemplate(entry.PathTemplate)
		if err != nil {
			return err
		}
		rt = &route{
			template:    entry.PathTemplate,
			segments:    segs,
			specificity: spec,
			methods:     make(map[string]*RouteEntry),
		}
		m.byPath[entry.PathTemplate] = rt
		m.routes = append(m.routes, rt)
	}
	if _, dup := rt.methods[entry.Method]; dup {
		return parseErrorf("paths."+entry.PathTemplate+"."+strings.ToLower(entry.Method),
			"duplicate operation for %s %s", entry.Method, entry.PathTemplate)
	}
	rt.methods[entry.Method] = entry
	return nil
}

// Match finds the entry for method at path. The path may be percent-encoded;
// parameter values are unescaped before they are returned.
func (m *Matcher) Match(path, method string) (*Match, bool) {
	rel, ok := m.stripBase(path)
	if !ok {
		return nil, false
	}
	parts := splitPath(rel)
	method = strings.ToUpper(method)

	var (
		best       *route
		bestParams map[string]string
	)
	for _, rt := range m.routes {
		if len(rt.segments) != len(parts) {
			continue
		}
		if _, ok := rt.methods[method]; !ok {
			continue
		}
		if best != nil && rt.specificity <= best.specificity {
			continue
		}
		params, ok := rt.match(parts)
		if !ok {
			continue
		}
		best, bestParams = rt, params
	}
	if best == nil {
		return nil, false
	}
	return &Match{Entry: best.methods[method], Params: bestParams}, true
}

func (m *Matcher) stripBase(path string) (string, bool) {
	if m.basePath == "" {
		return path, true
	}
	if path == m.basePath {
		return "/", true
	}
	if strings.HasPrefix(path, m.basePath+"/") {
		return path[len(m.basePath):], true
	}
	return "", false
}

func (rt *route) match(parts []string) (map[string]string, bool) {
	var params map[string]string
	for i, seg := range rt.segments {
		part := unescapeSegment(parts[i])
		switch {
		case seg.param != "":
			if part == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = part
		case seg.pattern != nil:
			sub := seg.pattern.FindStringSubmatch(part)
			if sub == nil {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			for j, name := range seg.names {
				params[name] = sub[j+1]
			}
		default:
			if seg.literal != part {
				return nil, false
			}
		}
	}
	return params, true
}

// compileTemplate splits a template into segments and returns its
// specificity (number of literal segments).
func compileTemplate(template string) ([]segment, int, error) {
	if template == "" || template[0] != '/' {
		return nil, 0, parseErrorf("paths."+template, "path template must start with '/'")
	}

	seen := make(map[string]bool)
	parts := splitPath(template)
	segs := make([]segment, 0, len(parts))
	specificity := 0

	for _, part := range parts {
		if !strings.ContainsAny(part, "{}") {
			segs = append(segs, segment{literal: part})
			specificity++
			continue
		}

		names, pattern, err := compileSegment(template, part)
		if err != nil {
			return nil, 0, err
		}
		for _, n := range names {
			if seen[n] {
				return nil, 0, parseErrorf("paths."+template, "duplicate path parameter %q", n)
			}
			seen[n] = true
		}

		if len(names) == 1 && part == "{"+names[0]+"}" {
			segs = append(segs, segment{param: names[0]})
			continue
		}
		segs = append(segs, segment{pattern: pattern, names: names})
	}
	return segs, specificity, nil
}

func compileSegment(template, part string) ([]string, *regexp.Regexp, error) {
	var (
		names []string
		buf   strings.Builder
	)
	buf.WriteString("^")
	for i := 0; i < len(part); {
		switch part[i] {
		case '{':
			end := strings.IndexByte(part[i:], '}')
			if end == -1 {
				return nil, nil, parseErrorf("paths."+template, "unclosed path parameter in segment %q", part)
			}
			name := part[i+1 : i+end]
			if name == "" || strings.ContainsAny(name, "{") {
				return nil, nil, parseErrorf("paths."+template, "invalid path parameter in segment %q", part)
			}
			names = append(names, name)
			buf.WriteString("([^/]+)")
			i += end + 1
		case '}':
			return nil, nil, parseErrorf("paths."+template, "unexpected '}' in segment %q", part)
		default:
			next := strings.IndexAny(part[i:], "{}")
			if next == -1 {
				next = len(part) - i
			}
			buf.WriteString(regexp.QuoteMeta(part[i : i+next]))
			i += next
		}
	}
	buf.WriteString("$")

	re, err := regexp.Compile(buf.String())
	if err != nil {
		return nil, nil, &ParseError{Path: "paths." + template, Reason: "invalid path template", Err: err}
	}
	return names, re, nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func unescapeSegment(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	u, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return u
}
