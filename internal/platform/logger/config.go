package logger

import "strings"

type LoggerConfig struct {
	Level      string // "debug", "info", "warn", "error"
	Format     string // "json", "text"
	OutputFile string // "stdout", "stderr" or a file path
}

func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      "info",
		Format:     "json",
		OutputFile: "stdout",
	}
}

func (c *LoggerConfig) encoding() string {
	switch strings.ToLower(c.Format) {
	case "text", "console":
		return "console"
	default:
		return "json"
	}
}

func (c *LoggerConfig) outputPaths() []string {
	switch c.OutputFile {
	case "", "stdout":
		return []string{"stdout"}
	case "stderr":
		return []string{"stderr"}
	default:
		return []string{c.OutputFile, "stdout"}
	}
}
