// Package paramtree models the structurally-typed parameter trees captured by
// anchors. A Tree maps string keys to numeric leaves (float64), discrete leaves
// (string, bool, nil) or nested Trees. The package provides a structural deep
// clone, normalization of decoded JSON, and the leaf-by-leaf interpolation used
// by the morph engine.
package paramtree

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrUnsupportedValue is returned by Clone and Normalize when a tree holds a
// value that cannot round-trip through JSON (functions, channels, NaN, Inf,
// slices, structs, ...).
var ErrUnsupportedValue = errors.New("paramtree: unsupported value")

// Tree is an arbitrary-depth mapping of string keys to leaves or nested Trees.
type Tree map[string]any

// Kind classifies a tree value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNumber
	KindDiscrete
	KindTree
)

// KindOf reports the kind of v. Numeric Go types are KindNumber, string, bool
// and nil are KindDiscrete, and Tree or map[string]any is KindTree.
func KindOf(v any) Kind {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindNumber
	case string, bool, nil:
		return KindDiscrete
	case Tree, map[string]any:
		return KindTree
	default:
		return KindInvalid
	}
}

// Clone returns a structural deep copy of t. Numeric leaves are normalized to
// float64 and nested map[string]any values become Trees. Any value that is not
// JSON-safe is rejected with ErrUnsupportedValue; a nil tree clones to nil.
func Clone(t Tree) (Tree, error) {
	if t == nil {
		return nil, nil
	}

	return cloneTree(t, "")
}

// Normalize converts a decoded JSON object (or any map[string]any) into a Tree
// using the same rules as Clone.
func Normalize(m map[string]any) (Tree, error) {
	return Clone(Tree(m))
}

// MustClone is Clone for trees already known to be valid, such as trees held
// by a store that were cloned on the way in.
func MustClone(t Tree) Tree {
	cp, err := Clone(t)
	if err != nil {
		panic(err)
	}

	return cp
}

func cloneTree(t map[string]any, prefix string) (Tree, error) {
	out := make(Tree, len(t))
	for k, v := range t {
		path := join(prefix, k)
		cv, err := cloneValue(v, path)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}

	return out, nil
}

func cloneValue(v any, path string) (any, error) {
	switch x := v.(type) {
	case Tree:
		return cloneTree(x, path)
	case map[string]any:
		return cloneTree(x, path)
	case string, bool, nil:
		return x, nil
	}

	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %T", ErrUnsupportedValue, path, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s is not finite", ErrUnsupportedValue, path)
	}

	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asTree(v any) (Tree, bool) {
	switch x := v.(type) {
	case Tree:
		return x, true
	case map[string]any:
		return Tree(x), true
	default:
		return nil, false
	}
}

// Lookup returns the value at a dot-separated path such as "visual.spin".
func Lookup(t Tree, path string) (any, bool) {
	cur := t
	parts := strings.Split(path, ".")
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := asTree(v)
		if !ok {
			return nil, false
		}
		cur = next
	}

	return nil, false
}

// Number returns the numeric leaf at path.
func Number(t Tree, path string) (float64, bool) {
	v, ok := Lookup(t, path)
	if !ok {
		return 0, false
	}

	return toFloat(v)
}

// Paths returns the sorted dot-separated paths of every leaf in t.
func Paths(t Tree) []string {
	var out []string
	walk(t, "", func(path string, _ any) {
		out = append(out, path)
	})
	sort.Strings(out)

	return out
}

func walk(t map[string]any, prefix string, fn func(path string, v any)) {
	for k, v := range t {
		path := join(prefix, k)
		if sub, ok := asTree(v); ok {
			walk(sub, path, fn)
			continue
		}
		fn(path, v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + "." + key
}
