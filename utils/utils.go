// Package utils provides utility functions for the application.
package utils

import "math"

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// Deref returns the pointed value or the zero value
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Percent returns part/total*100 rounded to the given number of decimals, or 0 when total is 0.
func Percent(part, total int64, decimals int) float64 {
	if total <= 0 {
		return 0
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(float64(part)/float64(total)*100*pow) / pow
}
