package main

import (
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	yml "gopkg.in/yaml.v2"

	"github.com/origami-ms/wrensramp/ramp"
	"github.com/origami-ms/wrensramp/wrens"
)

var k = koanf.New(".")

// Config is the content of ciuramp.yml
type Config struct {
	// Addr is the HTTP listen address of serve
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Mock replaces the bridge with an in-memory recorder
	Mock bool `koanf:"Mock" yaml:"Mock"`

	// MockScale stretches the recorder waits, 0 returns immediately
	MockScale float64 `koanf:"MockScale" yaml:"MockScale"`

	Host   wrens.Config `koanf:"Host" yaml:"Host"`
	Engine ramp.Config  `koanf:"Engine" yaml:"Engine"`
}

func defaultConfig() Config {
	return Config{
		Addr: ":8000",
		Host: wrens.Config{
			Addr: "localhost:7520",
			Baud: 9600,
		},
		Engine: ramp.DefaultConfig(),
	}
}

func setupConfig(path string) error {
	k = koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") { // file missing, who cares
			return errors.Wrap(err, "error loading config")
		}
	}
	return nil
}

func loadConfig() (Config, error) {
	c := Config{}
	err := k.Unmarshal("", &c)
	return c, err
}

// NewMkconfCommand .
func NewMkconfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mkconf",
		Short: "Write the effective configuration to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			f, err := os.Create(configPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return yml.NewEncoder(f).Encode(c)
		},
	}
}

// NewConfCommand .
func NewConfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "conf",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return yml.NewEncoder(cmd.OutOrStdout()).Encode(c)
		},
	}
}
