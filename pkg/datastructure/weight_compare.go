package datastructure

import "github.com/lintang-b-s/roadgraph/pkg/util"

// EPS is the tolerance used when comparing path weights.
const EPS = 1e-6

func Eq(a, b float64) bool {
	return util.Abs(a-b) <= EPS
}

// Lt reports a < b with EPS tolerance.
func Lt(a, b float64) bool {
	return a+EPS < b
}

func Le(a, b float64) bool {
	return a <= b+EPS
}

func Gt(a, b float64) bool {
	return Lt(b, a)
}

func Ge(a, b float64) bool {
	return Le(b, a)
}
