package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigParses(t *testing.T) {
	var buf strings.Builder
	if err := writeDefaultConfig(&buf); err != nil {
		t.Fatal(err)
	}
	c, err := readConfig(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("default configuration does not parse: %v", err)
	}
	if c.MaxDepth != nil || c.Color != nil || c.Format != "" {
		t.Errorf("default configuration sets options: %#v", c)
	}
}

func TestReadConfig(t *testing.T) {
	c, err := readConfig(strings.NewReader(`
aliases:
  ptrchain: [pc]
max-depth: 7
color: false
format: json
layouts: [a.yml, b.yml]
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxDepth == nil || *c.MaxDepth != 7 {
		t.Errorf("max-depth: %v", c.MaxDepth)
	}
	if c.Color == nil || *c.Color {
		t.Errorf("color: %v", c.Color)
	}
	if c.Format != "json" || len(c.Layouts) != 2 || c.Aliases["ptrchain"][0] != "pc" {
		t.Errorf("wrong configuration %#v", c)
	}

	if _, err := readConfig(strings.NewReader("max-depth: [")); err == nil {
		t.Errorf("malformed configuration accepted")
	}
}

func TestGetConfigFilePathXDG(t *testing.T) {
	dir := t.TempDir()
	old, had := os.LookupEnv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", dir)
	defer func() {
		if had {
			os.Setenv("XDG_CONFIG_HOME", old)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	}()

	p, err := GetConfigFilePath(configFile)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "memviz", "config.yml"); p != want {
		t.Errorf("got %q expected %q", p, want)
	}

	c, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxDepth != nil {
		t.Errorf("unexpected option in new configuration")
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("default configuration not created: %v", err)
	}

	n := 3
	c.MaxNodes = &n
	if err := SaveConfig(c); err != nil {
		t.Fatal(err)
	}
	c, err = LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxNodes == nil || *c.MaxNodes != 3 {
		t.Errorf("max-nodes not saved: %v", c.MaxNodes)
	}
}

func TestConfigureSetSimple(t *testing.T) {
	c := &Config{}
	set := func(name, arg string) error {
		field := ConfigureFindFieldByName(c, name, "yaml")
		if !field.CanAddr() {
			t.Fatalf("no field %q", name)
		}
		return ConfigureSetSimple(arg, name, field)
	}
	if err := set("max-depth", "9"); err != nil || *c.MaxDepth != 9 {
		t.Errorf("max-depth: %v %v", err, c.MaxDepth)
	}
	if err := set("max-depth", "-1"); err == nil {
		t.Errorf("negative max-depth accepted")
	}
	if err := set("color", "true"); err != nil || !*c.Color {
		t.Errorf("color: %v %v", err, c.Color)
	}
	if err := set("color", "maybe"); err == nil {
		t.Errorf("bad boolean accepted")
	}
	if err := set("prompt", `"> "`); err != nil || c.Prompt != "> " {
		t.Errorf("prompt: %v %q", err, c.Prompt)
	}
	if err := set("layouts", "x"); err == nil {
		t.Errorf("list set as a simple value")
	}
	if f := ConfigureFindFieldByName(c, "nonexistent", "yaml"); f.CanAddr() {
		t.Errorf("found nonexistent field")
	}
	if got := ConfigureListByName(c, "max-depth", "yaml"); got != "max-depth\t9\n" {
		t.Errorf("list max-depth: %q", got)
	}
	if got := ConfigureListByName(c, "max-nodes", "yaml"); got != "max-nodes\t<not defined>\n" {
		t.Errorf("list max-nodes: %q", got)
	}

	var buf strings.Builder
	ConfigureList(&buf, c, "yaml")
	if !strings.Contains(buf.String(), "prompt") || !strings.Contains(buf.String(), `"> "`) {
		t.Errorf("list:\n%s", buf.String())
	}
}
