package policy

import "strings"

// PolicyKey identifies a retry policy, e.g. "dbinit.catalog".
type PolicyKey struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name      string `json:"name" yaml:"name"`
}

// ParseKey parses "namespace.name" into a PolicyKey. Only the first dot splits.
func ParseKey(s string) PolicyKey {
	s = strings.TrimSpace(s)
	if s == "" {
		return PolicyKey{}
	}
	ns, name, ok := strings.Cut(s, ".")
	if !ok {
		return PolicyKey{Name: s}
	}
	ns = strings.TrimSpace(ns)
	name = strings.TrimSpace(name)
	if name == "" {
		return PolicyKey{Name: s}
	}
	if ns == "" {
		return PolicyKey{Name: name}
	}
	return PolicyKey{Namespace: ns, Name: name}
}

func (k PolicyKey) String() string {
	switch {
	case k.Namespace == "":
		return k.Name
	case k.Name == "":
		return k.Namespace
	default:
		return k.Namespace + "." + k.Name
	}
}
