package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type Kind int

const (
	String Kind = iota
	Int
)

// Key describes one dot-separated setting of the config file.
type Key struct {
	Name    string
	Kind    Kind
	Secret  bool
	Min     int
	Choices []string
}

var keys = []Key{
	{Name: "share_dir", Kind: String},
	{Name: "log_level", Kind: String, Choices: []string{"debug", "info", "warn", "error"}},
	{Name: "preview_width", Kind: Int, Min: 10},
	{Name: "catalog_workers", Kind: Int, Min: 1},
	{Name: "llm.provider", Kind: String, Choices: []string{"openai"}},
	{Name: "llm.base_url", Kind: String},
	{Name: "llm.api_key", Kind: String, Secret: true},
	{Name: "llm.model", Kind: String},
	{Name: "llm.max_context_tokens", Kind: Int, Min: 0},
}

// Keys returns every settable key in file order.
func Keys() []Key {
	return slices.Clone(keys)
}

func LookupKey(name string) (Key, bool) {
	i := slices.IndexFunc(keys, func(k Key) bool { return k.Name == name })
	if i < 0 {
		return Key{}, false
	}
	return keys[i], true
}

// IsSecretKey reports whether the value under name must be masked.
func IsSecretKey(name string) bool {
	k, ok := LookupKey(name)
	return ok && k.Secret
}

// Parse converts a command-line value to the key's type and checks its range.
func (k Key) Parse(value string) (any, error) {
	switch k.Kind {
	case Int:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", k.Name, value)
		}
		if n < k.Min {
			return nil, fmt.Errorf("%s: must be at least %d", k.Name, k.Min)
		}
		return n, nil
	default:
		if len(k.Choices) > 0 && !slices.Contains(k.Choices, value) {
			return nil, fmt.Errorf("%s: must be one of %s", k.Name, strings.Join(k.Choices, ", "))
		}
		return value, nil
	}
}

// normalize gives decoded values the key's Go type: JSON numbers decode as
// float64 and YAML ones as int.
func (k Key) normalize(v any) any {
	if k.Kind != Int {
		return v
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int64:
		return int(n)
	}
	return v
}

// mask hides all but the last four characters of a secret.
func (k Key) mask(v any) any {
	s, ok := v.(string)
	if !k.Secret || !ok || s == "" {
		return v
	}
	return "***" + s[max(0, len(s)-4):]
}

// Flatten converts a nested document into dot-separated keys,
// {"llm": {"model": "gpt-4o"}} becoming {"llm.model": "gpt-4o"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten rebuilds the nested document. A key that is both a value and a
// section, like "llm" next to "llm.model", is an error.
func Unflatten(flat map[string]any) (map[string]any, error) {
	names := make([]string, 0, len(flat))
	for k := range flat {
		names = append(names, k)
	}
	slices.Sort(names)

	out := make(map[string]any)
	for _, name := range names {
		parts := strings.Split(name, ".")
		section := out
		for _, part := range parts[:len(parts)-1] {
			next, exists := section[part]
			if !exists {
				next = make(map[string]any)
				section[part] = next
			}
			m, ok := next.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("config key %s: %s is not a section", name, part)
			}
			section = m
		}
		leaf := parts[len(parts)-1]
		if _, ok := section[leaf].(map[string]any); ok {
			return nil, fmt.Errorf("config key %s is a section", name)
		}
		section[leaf] = flat[name]
	}
	return out, nil
}

// MaskSecrets returns a copy of flat with secret values shown as "***" plus
// their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for name, v := range flat {
		if k, ok := LookupKey(name); ok {
			v = k.mask(v)
		}
		out[name] = v
	}
	return out
}
