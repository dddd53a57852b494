package config

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode"
)

// Like strings.Fields but ignores spaces inside areas surrounded
// by the specified quote character.
// To specify a single quote use backslash to escape it: '\''
func SplitQuotedFields(in string, quote rune) []string {
	type stateEnum int
	const (
		inSpace stateEnum = iota
		inField
		inQuote
		inQuoteEscaped
	)
	state := inSpace
	r := []string{}
	var buf bytes.Buffer

	for _, ch := range in {
		switch state {
		case inSpace:
			if ch == quote {
				state = inQuote
			} else if !unicode.IsSpace(ch) {
				buf.WriteRune(ch)
				state = inField
			}

		case inField:
			if ch == quote {
				state = inQuote
			} else if unicode.IsSpace(ch) {
				r = append(r, buf.String())
				buf.Reset()
			} else {
				buf.WriteRune(ch)
			}

		case inQuote:
			if ch == quote {
				state = inField
			} else if ch == '\\' {
				state = inQuoteEscaped
			} else {
				buf.WriteRune(ch)
			}

		case inQuoteEscaped:
			buf.WriteRune(ch)
			state = inQuote
		}
	}

	if buf.Len() != 0 {
		r = append(r, buf.String())
	}

	return r
}

// ConfigureSetSimple sets field, the configuration field called cfgname, to
// the value parsed from rest. Supported types are int, bool, string and
// pointers to them.
func ConfigureSetSimple(rest string, cfgname string, field reflect.Value) error {
	simpleArg := func(typ reflect.Type) (reflect.Value, error) {
		switch typ.Kind() {
		case reflect.Int:
			n, err := strconv.Atoi(rest)
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number", cfgname)
			}
			if n < 0 {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number greater than zero", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Bool:
			if rest != "true" && rest != "false" {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be true or false", cfgname)
			}
			v := rest == "true"
			return reflect.ValueOf(&v), nil
		case reflect.String:
			unquoted, err := strconv.Unquote(rest)
			if err == nil {
				rest = unquoted
			}
			return reflect.ValueOf(&rest), nil
		default:
			return reflect.ValueOf(nil), fmt.Errorf("unsupported type for configuration key %q", cfgname)
		}
	}

	if field.Kind() == reflect.Ptr {
		val, err := simpleArg(field.Type().Elem())
		if err != nil {
			return err
		}
		field.Set(val)
	} else {
		val, err := simpleArg(field.Type())
		if err != nil {
			return err
		}
		field.Set(val.Elem())
	}
	return nil
}

// ConfigureList writes all the configuration fields of conf, a pointer to a
// struct, to w. Field names are read from the tag called tag.
func ConfigureList(w io.Writer, conf interface{}, tag string) {
	tw := new(tabwriter.Writer)
	tw.Init(w, 0, 8, 1, ' ', 0)

	it := IterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}
		writeField(tw, fieldName, field)
	}
	tw.Flush()
}

func writeField(w io.Writer, fieldName string, field reflect.Value) {
	switch {
	case field.Kind() == reflect.Ptr && field.IsNil():
		fmt.Fprintf(w, "%s\t<not defined>\n", fieldName)
	case field.Kind() == reflect.Ptr:
		fmt.Fprintf(w, "%s\t%v\n", fieldName, field.Elem())
	case field.Kind() == reflect.String:
		fmt.Fprintf(w, "%s\t%q\n", fieldName, field)
	default:
		fmt.Fprintf(w, "%s\t%v\n", fieldName, field)
	}
}

// ConfigureIterator iterates over the fields of a configuration struct.
type ConfigureIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	i        int
	tag      string
}

// IterateConfiguration returns an iterator over the fields of conf, a
// pointer to a struct.
func IterateConfiguration(conf interface{}, tag string) *ConfigureIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	cfgType := cfgValue.Type()

	return &ConfigureIterator{cfgValue, cfgType, -1, tag}
}

// Next advances the iterator, it returns false after the last field.
func (it *ConfigureIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

// Field returns the name and value of the current field.
func (it *ConfigureIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get(it.tag)
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

// ConfigureListByName returns the "name\tvalue" line of the field of conf
// called cfgname, or the empty string if there is no such field.
func ConfigureListByName(conf interface{}, cfgname, tag string) string {
	if cfgname == "" {
		return ""
	}
	it := IterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == cfgname {
			var buf bytes.Buffer
			writeField(&buf, fieldName, field)
			return buf.String()
		}
	}
	return ""
}

// ConfigureFindFieldByName returns the field of conf called name. The
// returned value is not addressable if there is no such field.
func ConfigureFindFieldByName(conf interface{}, name, tag string) reflect.Value {
	it := IterateConfiguration(conf, tag)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			return field
		}
	}
	return reflect.ValueOf(nil)
}
