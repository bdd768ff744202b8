package stdx

// Must0 panics if err is not nil. Use it for operations that cannot fail
// unless the program is already broken.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, panicking if err is not nil. It turns a (value, error)
// pair into a plain value at call sites where the error is impossible.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Must2 is Must1 for functions that return two values and an error.
func Must2[T any, V any](t T, v V, err error) (T, V) {
	if err != nil {
		panic(err)
	}
	return t, v
}
