package paramtree

import "sort"

// Midpoint is the progress at which discrete leaves switch from the "from"
// value to the "to" value.
const Midpoint = 0.5

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Interpolate walks from and to key by key and returns the blended tree at
// progress t. Numeric pairs are lerped; discrete pairs (and pairs of differing
// kinds) hold the from value while t < Midpoint and switch to the to value at
// or after it. Nested trees recurse. A key present on only one side keeps that
// side's value for every t. The inputs are never mutated.
func Interpolate(from, to Tree, t float64) Tree {
	out := make(Tree, max(len(from), len(to)))

	for k, fv := range from {
		tv, ok := to[k]
		if !ok {
			out[k] = cloneLeaf(fv)
			continue
		}
		out[k] = interpolateValue(fv, tv, t)
	}

	for k, tv := range to {
		if _, ok := from[k]; ok {
			continue
		}
		out[k] = cloneLeaf(tv)
	}

	return out
}

func interpolateValue(a, b any, t float64) any {
	ta, aTree := asTree(a)
	tb, bTree := asTree(b)
	if aTree && bTree {
		return Interpolate(ta, tb, t)
	}

	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return Lerp(fa, fb, t)
	}

	if t < Midpoint {
		return cloneLeaf(a)
	}

	return cloneLeaf(b)
}

// cloneLeaf copies nested trees so interpolated output never aliases an input.
func cloneLeaf(v any) any {
	if sub, ok := asTree(v); ok {
		out := make(Tree, len(sub))
		for k, x := range sub {
			out[k] = cloneLeaf(x)
		}
		return out
	}
	if f, ok := toFloat(v); ok {
		return f
	}

	return v
}

// Mismatches lists the paths whose shape differs between from and to: keys
// present on one side only, and keys whose value kinds differ (for example a
// number on one side and a nested tree on the other).
func Mismatches(from, to Tree) []string {
	var out []string
	mismatches(from, to, "", &out)
	sort.Strings(out)

	return out
}

func mismatches(from, to Tree, prefix string, out *[]string) {
	for k, fv := range from {
		path := join(prefix, k)
		tv, ok := to[k]
		if !ok {
			*out = append(*out, path)
			continue
		}
		fk, tk := KindOf(fv), KindOf(tv)
		if fk != tk {
			*out = append(*out, path)
			continue
		}
		if fk == KindTree {
			ft, _ := asTree(fv)
			tt, _ := asTree(tv)
			mismatches(ft, tt, path, out)
		}
	}

	for k := range to {
		if _, ok := from[k]; !ok {
			*out = append(*out, join(prefix, k))
		}
	}
}
