package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
)

// CloseWithErr closes c and logs a failure as a warning tagged with name.
// Nil closers, typed nil pointers included, are ignored, as is closing an
// already closed file.
func CloseWithErr(c io.Closer, name string) {
	if isNilCloser(c) {
		return
	}
	err := c.Close()
	if err == nil || errors.Is(err, os.ErrClosed) {
		return
	}
	if name == "" {
		name = fmt.Sprintf("%T", c)
	}
	Warnf("close %s: %v", name, err)
}

func isNilCloser(c io.Closer) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
