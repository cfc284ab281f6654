package config

import (
	"errors"
	"fmt"
	"io/fs"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Options are the command-line options of the relay binary.
type Options struct {
	ConfigPath string `short:"c" long:"config" env:"RELAY_CONFIG" default:"config.yaml" description:"Path to the YAML configuration file"`
	EnvFile    string `long:"env-file" env:"RELAY_ENV_FILE" default:".env" description:"Optional .env file with secrets"`
	Addr       string `long:"addr" env:"RELAY_ADDR" description:"Listen address of the health server (overrides server.addr)"`
	LogLevel   string `long:"log-level" env:"LOG_LEVEL" description:"Console log level: DEBUG, INFO, WARN, ERROR (overrides logging.level)"`
	NoColor    bool   `long:"no-color" description:"Disable colored output (overrides TTY detection)"`
}

// ParseOptions loads the .env file named by --env-file and parses args into
// Options. A missing env file is ignored; one that cannot be parsed is an
// error.
func ParseOptions(args []string) (Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)

	// The env file can set option variables, so read it before the final parse.
	if _, err := flags.NewParser(&opts, flags.IgnoreUnknown).ParseArgs(args); err == nil && opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Options{}, fmt.Errorf("loading %s: %w", opts.EnvFile, err)
		}
	}

	opts = Options{}
	if _, err := parser.ParseArgs(args); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ApplyOptions overlays command-line options onto cfg.
func ApplyOptions(cfg *Config, opts Options) {
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
		cfg.Server.Enabled = true
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
}
