package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v2"
)

const (
	configDir       string = "memviz"
	configDirHidden string = ".memviz"
	configFile      string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// MaxDepth is the default depth bound of ptrchain, tree and print.
	MaxDepth *int `yaml:"max-depth,omitempty"`
	// MaxNodes is the default number of nodes visited by list.
	MaxNodes *int `yaml:"max-nodes,omitempty"`
	// MaxBuckets is the default number of buckets shown by hashmap.
	MaxBuckets *int `yaml:"max-buckets,omitempty"`

	// Format is the default output format: text, json or yaml.
	Format string `yaml:"format,omitempty"`

	// Color enables styled markers in text output. If unset markers are
	// styled only when stdout is a terminal.
	Color *bool `yaml:"color,omitempty"`

	// Layouts is a list of layout files loaded before every image.
	Layouts []string `yaml:"layouts"`

	// Prompt replaces the default prompt of the terminal.
	Prompt string `yaml:"prompt,omitempty"`
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return &Config{}, fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer f.Close()

	return readConfig(f)
}

func readConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}

	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f io.Writer) error {
	_, err := io.WriteString(f,
		`# Configuration file for memviz.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Maximum depth followed by ptrchain, tree and print.
# max-depth: 5

# Maximum number of nodes visited by list.
# max-nodes: 20

# Maximum number of buckets shown by hashmap.
# max-buckets: 20

# Output format, one of text, json or yaml.
# format: text

# Uncomment to force styled output on or off, by default it is enabled when
# the standard output is a terminal.
# color: true

# Layout files loaded before every memory image.
layouts: []

# Uncomment to change the prompt of the terminal.
# prompt: "(memviz) "
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
//
// If $XDG_CONFIG_HOME is set the file is in $XDG_CONFIG_HOME/memviz. If
// a legacy ~/.memviz directory exists it is used instead, otherwise on
// linux the default is ~/.config/memviz.
func GetConfigFilePath(file string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDir, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	legacy := filepath.Join(userHomeDir, configDirHidden)
	if fi, err := os.Stat(legacy); err == nil && fi.IsDir() {
		return filepath.Join(legacy, file), nil
	}
	if runtime.GOOS == "linux" {
		return filepath.Join(userHomeDir, ".config", configDir, file), nil
	}
	return filepath.Join(legacy, file), nil
}
