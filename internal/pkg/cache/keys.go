package cache

// Keys collects the cache entries a write touched so they can be dropped in
// one round trip after commit.
type Keys struct {
	seen map[string]struct{}
	list []string
}

// Add records keys, ignoring repeats
func (k *Keys) Add(keys ...string) {
	if k.seen == nil {
		k.seen = make(map[string]struct{})
	}
	for _, key := range keys {
		if _, ok := k.seen[key]; ok {
			continue
		}
		k.seen[key] = struct{}{}
		k.list = append(k.list, key)
	}
}

// List returns the recorded keys in insertion order
func (k *Keys) List() []string {
	return k.list
}
