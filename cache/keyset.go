package cache

import "slices"

// KeySet names keys to invalidate. It is plain data so it can be sent to other
// replicas.
type KeySet struct {
	Exact    []string `json:"exact,omitempty"`
	Prefixes []string `json:"prefixes,omitempty"`
}

func (k *KeySet) AddExact(keys ...string) {
	for _, key := range keys {
		if !slices.Contains(k.Exact, key) {
			k.Exact = append(k.Exact, key)
		}
	}
}

func (k *KeySet) AddPrefix(prefixes ...string) {
	for _, p := range prefixes {
		if !slices.Contains(k.Prefixes, p) {
			k.Prefixes = append(k.Prefixes, p)
		}
	}
}

// AddResource adds path and every query variant of it.
func (k *KeySet) AddResource(path string) {
	k.AddExact(path)
	k.AddPrefix(path + "?")
}

func (k KeySet) Empty() bool {
	return len(k.Exact) == 0 && len(k.Prefixes) == 0
}

func (k KeySet) Matcher() Matcher {
	ms := make([]Matcher, 0, len(k.Exact)+len(k.Prefixes))
	for _, e := range k.Exact {
		ms = append(ms, Exact(e))
	}
	for _, p := range k.Prefixes {
		ms = append(ms, Prefix(p))
	}
	return Any(ms...)
}
