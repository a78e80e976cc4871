// Package constraints supplies the type-parameter constraints shared by
// comparison- and accumulation-flavored operators, built directly on
// golang.org/x/exp/constraints rather than duplicating its type sets.
package constraints

import "golang.org/x/exp/constraints"

// Ordered is any type that supports the <, <=, >, >= operators.
type Ordered = constraints.Ordered

// Numeric is any type that supports arithmetic operators.
type Numeric interface {
	constraints.Integer | constraints.Float
}
