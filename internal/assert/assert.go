// Package assert panics on broken internal invariants. It is not for validating input.
package assert

import (
	"fmt"
)

func Length(value string, expected int) {
	if len(value) != expected {
		msg := fmt.Sprintf("assert.Length expected %d actual %d", expected, len(value))
		panic(msg)
	}
}

func NoError(err error) {
	if err != nil {
		panic(fmt.Sprintf("assert.NoError: %v", err))
	}
}
