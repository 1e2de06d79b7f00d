package habitat

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errorType = reflect.TypeFor[error]()

// BeanProperty is the default PropertyGetter. It reads, in order: the entry
// of a map with string keys, a zero-argument method GetKey or Key (optionally
// returning a trailing error), and an exported struct field tagged
// `config:"key"` or named key case-insensitively.
func BeanProperty(key string, bean any) (any, error) {
	if bean == nil || key == "" {
		return nil, fmt.Errorf("%w: %q", ErrPropertyNotFound, key)
	}
	v := reflect.ValueOf(bean)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, fmt.Errorf("%w: %q", ErrPropertyNotFound, key)
	}

	if value, ok, err := callGetter(v, key); ok {
		return value, err
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: %q", ErrPropertyNotFound, key)
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		entry := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		if entry.IsValid() {
			return entry.Interface(), nil
		}
	case reflect.Struct:
		if field, ok := structField(v, key); ok {
			return field.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPropertyNotFound, key)
}

func callGetter(v reflect.Value, key string) (any, bool, error) {
	r, size := utf8.DecodeRuneInString(key)
	exported := string(unicode.ToUpper(r)) + key[size:]

	for _, name := range []string{"Get" + exported, exported} {
		m := v.MethodByName(name)
		if !m.IsValid() || m.Type().NumIn() != 0 {
			continue
		}
		switch mt := m.Type(); {
		case mt.NumOut() == 1:
			return m.Call(nil)[0].Interface(), true, nil
		case mt.NumOut() == 2 && mt.Out(1) == errorType:
			out := m.Call(nil)
			if err, _ := out[1].Interface().(error); err != nil {
				return nil, true, err
			}
			return out[0].Interface(), true, nil
		}
	}
	return nil, false, nil
}

func structField(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("config"); ok && tag == key {
			return v.Field(i), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, key) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
