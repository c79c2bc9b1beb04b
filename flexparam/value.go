package flexparam

import "fmt"

// ValueKind tags the dynamic type carried by a Value.
type ValueKind int

const (
	VInt ValueKind = iota
	VBool
	VMap
)

// Value is the one dynamic type the expression language operates over:
// an integer, a boolean, or a named int map (used for sizes/splits
// indexed lookups).
type Value struct {
	Kind ValueKind
	Int  int64
	Bool bool
	Map  map[string]int64
}

func IntValue(n int64) Value         { return Value{Kind: VInt, Int: n} }
func BoolValue(b bool) Value         { return Value{Kind: VBool, Bool: b} }
func MapValue(m map[string]int64) Value { return Value{Kind: VMap, Map: m} }

func (v Value) String() string {
	switch v.Kind {
	case VInt:
		return fmt.Sprintf("%d", v.Int)
	case VBool:
		return fmt.Sprintf("%t", v.Bool)
	case VMap:
		return fmt.Sprintf("%v", v.Map)
	default:
		return "<invalid>"
	}
}
