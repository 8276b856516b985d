package slice

import "math"

func Map[T any, U any](input []T, pred func(T) U) []U {
	result := make([]U, len(input))
	for i, v := range input {
		result[i] = pred(v)
	}
	return result
}

func All[T any](input []T, pred func(T) bool) bool {
	for _, v := range input {
		if !pred(v) {
			return false
		}
	}
	return true
}

func Find[T any](input []T, pred func(T) bool) (T, bool) {
	for _, v := range input {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Tail returns the last n elements, or all of them when fewer exist.
func Tail[T any](input []T, n int) []T {
	if n >= len(input) {
		return input
	}
	if n <= 0 {
		return input[:0]
	}
	return input[len(input)-n:]
}

// Repeat returns a slice holding v n times.
func Repeat[T any](v T, n int) []T {
	res := make([]T, max(n, 0))
	for i := range res {
		res[i] = v
	}
	return res
}

// Finite drops NaN and infinite values.
func Finite(input []float64) []float64 {
	res := make([]float64, 0, len(input))
	for _, v := range input {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			res = append(res, v)
		}
	}
	return res
}
