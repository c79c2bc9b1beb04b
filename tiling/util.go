package tiling

import "sort"

// divisorsOf returns every divisor of n that is >= minVal, ascending.
// Grounded on the teacher's divisor-enumeration helper: trial division
// up to sqrt(n), collecting both factors of each pair.
func divisorsOf(n, minVal int) []int {
	if n <= 0 {
		return nil
	}
	set := make(map[int]bool)
	for i := 1; i*i <= n; i++ {
		if n%i != 0 {
			continue
		}
		if i >= minVal {
			set[i] = true
		}
		j := n / i
		if j >= minVal {
			set[j] = true
		}
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func reverseInts(xs []int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// reorderDims puts dims named in order first, in that order, then
// appends any remaining dims in their original relative order.
func reorderDims(dims []string, order []string) []string {
	if len(order) == 0 {
		return dims
	}
	inOrder := make(map[string]bool, len(order))
	out := make([]string, 0, len(dims))
	for _, d := range order {
		for _, have := range dims {
			if have == d && !inOrder[d] {
				out = append(out, d)
				inOrder[d] = true
				break
			}
		}
	}
	for _, d := range dims {
		if !inOrder[d] {
			out = append(out, d)
		}
	}
	return out
}

func cloneIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func divides(shape, p map[string]int) bool {
	for d, v := range p {
		s, ok := shape[d]
		if !ok || v == 0 || s%v != 0 {
			return false
		}
	}
	return true
}

func divideShape(shape, p map[string]int) map[string]int {
	out := make(map[string]int, len(shape))
	for d, s := range shape {
		if v, ok := p[d]; ok && v != 0 {
			out[d] = s / v
		} else {
			out[d] = s
		}
	}
	return out
}

// cartesianProduct enumerates every combination of factorCache[d] over
// dims, in dims order.
func cartesianProduct(dims []string, factorCache map[string][]int) []map[string]int {
	result := []map[string]int{{}}
	for _, d := range dims {
		factors := factorCache[d]
		next := make([]map[string]int, 0, len(result)*len(factors))
		for _, base := range result {
			for _, f := range factors {
				m := cloneIntMap(base)
				m[d] = f
				next = append(next, m)
			}
		}
		result = next
	}
	return result
}

func permKey(dims []string, p map[string]int) string {
	b := make([]byte, 0, 8*len(dims))
	for _, d := range dims {
		b = append(b, d...)
		b = append(b, '=')
		b = appendInt(b, p[d])
		b = append(b, ';')
	}
	return string(b)
}

func appendInt(b []byte, v int) []byte {
	if v == 0 {
		return append(b, '0')
	}
	neg := v < 0
	if neg {
		v = -v
	}
	start := len(b)
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	if neg {
		b = append(b, '-')
	}
	// reverse the digits just appended
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

func lexLess(dims []string, a, b map[string]int) bool {
	for _, d := range dims {
		if a[d] != b[d] {
			return a[d] < b[d]
		}
	}
	return false
}
