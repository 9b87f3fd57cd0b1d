package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrUnsupportedType = errors.New("unsupported field type")
)

const (
	tagName    = "env"
	tagDefault = "envDefault"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load fills the exported fields of the struct pointed to by dst from the process
// environment. A field is bound through its `env:"NAME"` tag; untagged struct
// fields (or pointers to structs) are walked recursively.
//
// An unset variable is an error unless the field carries an `envDefault:"..."` tag.
// An empty default leaves the zero value in place.
//
// Every problem is reported, not only the first, so a misconfigured deployment
// can be fixed in one pass. The result matches ErrMissingRequired when any variable
// was missing.
func Load(dst any) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("destination must be a non-nil pointer to a struct")
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.New("destination must point to a struct")
	}

	var errs []error
	walk(v, "", &errs)

	return errors.Join(errs...)
}

func walk(v reflect.Value, path string, errs *[]error) {
	t := v.Type()

	for i := range v.NumField() {
		sf := t.Field(i)
		fv := v.Field(i)

		if !sf.IsExported() {
			continue
		}

		name := sf.Name
		if path != "" {
			name = path + "." + sf.Name
		}

		tag := sf.Tag.Get(tagName)
		if tag == "" || tag == "-" {
			switch {
			case fv.Kind() == reflect.Struct && sf.Type != durationType:
				walk(fv, name, errs)
			case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
				if fv.IsNil() {
					fv.Set(reflect.New(fv.Type().Elem()))
				}

				walk(fv.Elem(), name, errs)
			}

			continue
		}

		raw, ok := os.LookupEnv(tag)
		if !ok {
			def, hasDefault := sf.Tag.Lookup(tagDefault)
			if !hasDefault {
				*errs = append(*errs, fmt.Errorf("%w: %s (field %s)", ErrMissingRequired, tag, name))
				continue
			}

			if def == "" {
				continue
			}

			raw = def
		}

		err := setValue(fv, raw)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("parse %s for field %s: %w", tag, name, err))
		}
	}
}

//nolint:cyclop
func setValue(fv reflect.Value, raw string) error {
	if !fv.CanSet() {
		return fmt.Errorf("field not settable: %w", ErrUnsupportedType)
	}

	if fv.CanAddr() {
		if u, ok := fv.Addr().Interface().(encoding.TextUnmarshaler); ok {
			err := u.UnmarshalText([]byte(raw))
			if err != nil {
				return fmt.Errorf("unmarshal text: %w", err)
			}

			return nil
		}
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}

		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("parse duration: %w", err)
			}

			fv.SetInt(int64(d))

			return nil
		}

		i, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse int: %w", err)
		}

		fv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse uint: %w", err)
		}

		fv.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("parse float: %w", err)
		}

		fv.SetFloat(f)
	case reflect.Pointer:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		return setValue(fv.Elem(), raw)
	default:
		return fmt.Errorf("%s: %w", fv.Kind(), ErrUnsupportedType)
	}

	return nil
}
