package assert

import (
	"fmt"
	"reflect"
)

func NotNil(value any, name ...string) {
	if value == nil {
		panic(message("expected value to be not nil", name))
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(message("expected value to be not nil", name))
		}
	}
}

func NotEmptyStr(str string, name ...string) {
	if str == "" {
		panic(message("expected string to be non-empty", name))
	}
}

func message(msg string, name []string) string {
	if len(name) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", name[0], msg)
}
