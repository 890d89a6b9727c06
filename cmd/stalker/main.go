package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "stalker"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// DBLog is the zerolog logger handed to database and influx helpers
	DBLog zerolog.Logger

	// LogFile is the per-run log file, nil when it could not be opened
	LogFile *os.File

	SessionStartTime time.Time = time.Now()
)

func usage() {
	fmt.Fprintf(os.Stderr, `%s %s (%s)

Usage:
  %s run [flags] [scenario.yaml]    play a scenario and record it
  %s export [flags]                 write a recorded session as JSON
  %s migrate [flags]                copy SQLite dumps into Postgres
  %s version

Run "%s <command> --help" for the flags of a command.
`, AppName, CurrentVersion, BuildDate, AppName, AppName, AppName, AppName, AppName)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch strings.ToLower(os.Args[1]) {
	case "run":
		err = runCommand(os.Args[2:])
	case "export":
		err = exportCommand(os.Args[2:])
	case "migrate":
		err = migrateCommand(os.Args[2:])
	case "version":
		fmt.Printf("%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		if Logger != nil {
			Logger.Error("Command failed", "command", os.Args[1], "error", err)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		closeLogging()
		os.Exit(1)
	}
	closeLogging()
}

// newFlagSet creates a subcommand flag set carrying the flags every
// command shares.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "", "directory for log files")
	return fs
}

// loadConfig reads the config file and binds changed flags over it. A
// missing config file is not an error: defaults apply.
func loadConfig(fs *pflag.FlagSet, bindings map[string]string) error {
	configDir, _ := fs.GetString("config-dir")
	configErr := config.Load(configDir)

	bindings["log-level"] = "logLevel"
	bindings["logs-dir"] = "logsDir"
	for flag, key := range bindings {
		f := fs.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	var notFound viper.ConfigFileNotFoundError
	if configErr != nil && !errors.As(configErr, &notFound) {
		return configErr
	}
	return nil
}

// setupLogging creates the logs directory and the per-run log file and
// configures slog and zerolog over them. provider may be nil.
func setupLogging(provider logging.ContextProvider) {
	level := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")

	SlogManager = logging.NewSlogManager()
	if provider != nil {
		SlogManager.SetContextProvider(provider)
	}

	console := io.Writer(os.Stdout)
	f, err := logging.OpenLogFile(logsDir, AppName, SessionStartTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging to console only: %v\n", err)
	} else {
		LogFile = f
	}

	var graylog io.Writer
	glCfg := config.GetGraylogConfig()
	if glCfg.Enabled {
		w, err := logging.NewGraylogWriter(glCfg.Address, AppName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to Graylog at %s: %v\n", glCfg.Address, err)
		} else {
			graylog = w
		}
	}

	var file io.Writer
	sink := console
	if LogFile != nil {
		file = LogFile
		sink = io.MultiWriter(console, LogFile)
	}
	SlogManager.Setup(sink, level, graylog)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	DBLog = logging.NewZerolog(console, file, level)

	if LogFile != nil {
		Logger.Info("Logging to file", "path", LogFile.Name())
	}
}

func closeLogging() {
	if SlogManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = SlogManager.Flush(ctx)
		cancel()
	}
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}

// defaultBackupDir is where sqlite dumps land by default.
func defaultBackupDir() string {
	return filepath.Dir(config.GetStorageConfig().SQLite.DumpPath)
}
