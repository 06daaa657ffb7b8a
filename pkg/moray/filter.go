package moray

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Filter is a parsed record store search filter. Supported forms:
//
//	uuid=*                   attribute present
//	name=base                attribute equals value
//	(uuid=*)                 parenthesized
//	(&(uuid=*)(state=active)) conjunction
type Filter struct {
	clauses []clause
}

type clause struct {
	attr    string
	value   string
	present bool
}

// ParseFilter parses a filter string.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, fmt.Errorf("empty filter")
	}

	if strings.HasPrefix(s, "(&") {
		if !strings.HasSuffix(s, ")") {
			return Filter{}, fmt.Errorf("unbalanced filter %q", s)
		}
		return parseConjunction(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "(") {
		if !strings.HasSuffix(s, ")") {
			return Filter{}, fmt.Errorf("unbalanced filter %q", s)
		}
		s = s[1 : len(s)-1]
	}

	c, err := parseClause(s)
	if err != nil {
		return Filter{}, err
	}
	return Filter{clauses: []clause{c}}, nil
}

func parseConjunction(s string) (Filter, error) {
	var f Filter
	for len(s) > 0 {
		if s[0] != '(' {
			return Filter{}, fmt.Errorf("expected '(' in conjunction, got %q", s)
		}
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return Filter{}, fmt.Errorf("unbalanced conjunction term %q", s)
		}
		c, err := parseClause(s[1:end])
		if err != nil {
			return Filter{}, err
		}
		f.clauses = append(f.clauses, c)
		s = s[end+1:]
	}
	if len(f.clauses) == 0 {
		return Filter{}, fmt.Errorf("empty conjunction")
	}
	return f, nil
}

func parseClause(s string) (clause, error) {
	if strings.ContainsAny(s, "()&|!") {
		return clause{}, fmt.Errorf("unsupported filter term %q", s)
	}
	attr, value, ok := strings.Cut(s, "=")
	if !ok || attr == "" {
		return clause{}, fmt.Errorf("filter term %q is not attr=value", s)
	}
	if value == "*" {
		return clause{attr: attr, present: true}, nil
	}
	return clause{attr: attr, value: value}, nil
}

// Match reports whether obj satisfies every clause of the filter.
func (f Filter) Match(obj map[string]interface{}) bool {
	for _, c := range f.clauses {
		v, ok := obj[c.attr]
		if !ok || v == nil {
			return false
		}
		if c.present {
			continue
		}
		s, ok := scalarString(v)
		if !ok || s != c.value {
			return false
		}
	}
	return true
}

// String renders the filter back in its canonical form.
func (f Filter) String() string {
	terms := make([]string, len(f.clauses))
	for i, c := range f.clauses {
		v := c.value
		if c.present {
			v = "*"
		}
		terms[i] = "(" + c.attr + "=" + v + ")"
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return "(&" + strings.Join(terms, "") + ")"
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}
