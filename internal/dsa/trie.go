// Package dsa provides the keyword index behind command completion.
// Uses go-radix for a compressed prefix tree (radix tree).
package dsa

import (
	"github.com/armon/go-radix"
)

// Trie wraps go-radix for typed values.
//
// Time Complexity: O(k) lookups where k is key length.
type Trie[V any] struct {
	tree *radix.Tree
}

// NewTrie creates an empty tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{tree: radix.New()}
}

// Insert adds or replaces a key.
func (t *Trie[V]) Insert(key string, value V) {
	t.tree.Insert(key, value)
}

// Search looks up an exact key.
func (t *Trie[V]) Search(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	v, ok := val.(V)
	return v, ok
}

// StartsWith returns all keys that start with prefix, in lexical order.
func (t *Trie[V]) StartsWith(prefix string) []string {
	var results []string
	t.tree.WalkPrefix(prefix, func(k string, _ interface{}) bool {
		results = append(results, k)
		return false
	})
	return results
}

// Complete resolves prefix to the single key it starts. An exact key always
// wins; an ambiguous or unknown prefix reports false.
func (t *Trie[V]) Complete(prefix string) (string, V, bool) {
	var zero V
	if v, ok := t.Search(prefix); ok {
		return prefix, v, true
	}
	keys := t.StartsWith(prefix)
	if prefix == "" || len(keys) != 1 {
		return "", zero, false
	}
	v, ok := t.Search(keys[0])
	if !ok {
		return "", zero, false
	}
	return keys[0], v, true
}
