package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

// JSONFormatter renders the model as indented JSON.
type JSONFormatter struct{}

// Format implements Formatter.
func (JSONFormatter) Format(n *Node) ([]string, error) {
	buf, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return nil, err
	}
	return strings.Split(string(buf), "\n"), nil
}

// YAMLFormatter renders the model as YAML.
type YAMLFormatter struct{}

// Format implements Formatter.
func (YAMLFormatter) Format(n *Node) ([]string, error) {
	buf, err := yaml.Marshal(n)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(buf), "\n"), "\n"), nil
}

// FormatterNames lists the names accepted by FormatterByName.
var FormatterNames = []string{"text", "json", "yaml"}

// FormatterByName returns the formatter called name, the empty string is
// "text".
func FormatterByName(name string) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return TextFormatter{}, nil
	case "json":
		return JSONFormatter{}, nil
	case "yaml", "yml":
		return YAMLFormatter{}, nil
	}
	return nil, fmt.Errorf("unknown format %q, must be one of %s", name, strings.Join(FormatterNames, ", "))
}
