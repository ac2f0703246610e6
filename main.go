package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"agentx/internal/config"
	"agentx/internal/styles"
	"agentx/internal/ui"
)

// openLogger writes structured logs to a file; stdout belongs to the
// terminal UI.
func openLogger(cfg config.Config) (*slog.Logger, io.Closer) {
	path := cfg.LogFile
	if path == "" {
		if configPath, err := config.Path(); err == nil {
			path = filepath.Join(filepath.Dir(configPath), "agentx.log")
		}
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	return slog.New(slog.NewTextHandler(f, nil)), f
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, logFile := openLogger(cfg)
	if logFile != nil {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	styles.InitTheme()

	p, err := ui.NewProgram(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m, ok := finalModel.(*ui.Model); ok {
		if m.DB != nil {
			_ = m.DB.Close()
		}
	}
}
