package terminal

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-delve/memviz/pkg/config"
	"github.com/go-delve/memviz/service/api"
)

func configureCmd(t *Term, args string) error {
	switch args {
	case "-list":
		config.ConfigureList(t.stdout, t.conf, "yaml")
		return nil
	case "-save":
		return config.SaveConfig(t.conf)
	case "":
		return fmt.Errorf("wrong number of arguments to \"config\"")
	default:
		err := configureSet(t, args)
		if err != nil {
			return err
		}
		t.applyConfig()
		return nil
	}
}

// applyConfig updates the state of the terminal after a change of t.conf.
func (t *Term) applyConfig() {
	t.format = t.conf.Format
	if t.conf.Color != nil {
		t.color = *t.conf.Color
	}
	if t.conf.Prompt != "" {
		t.prompt = t.conf.Prompt
	}
}

func configureSet(t *Term, args string) error {
	v := split2PartsBySpace(args)

	cfgname := v[0]
	var rest string
	if len(v) == 2 {
		rest = v[1]
	}

	if cfgname == "alias" {
		return configureSetAlias(t, rest)
	}

	field := config.ConfigureFindFieldByName(t.conf, cfgname, "yaml")
	if !field.CanAddr() {
		return fmt.Errorf("%q is not a configuration parameter", cfgname)
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
		return configureSetList(field, rest)
	}

	if cfgname == "format" {
		if _, err := api.FormatterByName(rest); err != nil {
			return err
		}
	}

	return config.ConfigureSetSimple(rest, cfgname, field)
}

// configureSetList sets a list of strings, an empty argument clears it.
func configureSetList(field reflect.Value, rest string) error {
	argv := config.SplitQuotedFields(rest, '"')
	field.Set(reflect.ValueOf(argv))
	return nil
}

func configureSetAlias(t *Term, rest string) error {
	argv := config.SplitQuotedFields(rest, '"')
	switch len(argv) {
	case 1: // delete alias rule
		for k := range t.conf.Aliases {
			v := t.conf.Aliases[k]
			for i := range v {
				if v[i] == argv[0] {
					copy(v[i:], v[i+1:])
					t.conf.Aliases[k] = v[:len(v)-1]
					break
				}
			}
		}
	case 2: // add alias rule
		alias, cmd := argv[1], argv[0]
		if t.conf.Aliases == nil {
			t.conf.Aliases = make(map[string][]string)
		}
		t.conf.Aliases[cmd] = append(t.conf.Aliases[cmd], alias)
	default:
		return fmt.Errorf("wrong number of arguments to \"config alias\"")
	}
	t.cmds.Merge(t.conf.Aliases)
	return nil
}

func split2PartsBySpace(s string) []string {
	v := strings.SplitN(s, " ", 2)
	for i := range v {
		v[i] = strings.TrimSpace(v[i])
	}
	return v
}
