// Package mathx provides rounding helpers shared by the planner and the ramp engine
package mathx

import "math"

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
// Halves round away from zero.
func Round(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}

// RoundHalfEven rounds x to the nearest integer, ties to even.
// This is the rounding the acquisition host applies when it converts a double
// scan count to an integer, so 2.5 becomes 2 and 3.5 becomes 4.
func RoundHalfEven(x float64) int {
	return int(math.RoundToEven(x))
}
