package cmdutil

import (
	"fmt"
	"os"

	"github.com/stratastor/logger"
	"github.com/stratastor/tether/config"
	"github.com/stratastor/tether/pkg/tether"
)

// Logger returns a tagged logger for the loaded configuration, exiting on
// failure
func Logger(tag string) logger.Logger {
	l, err := logger.NewTag(config.NewLoggerConfig(config.GetConfig()), tag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return l
}

// Service builds a stopped service from the loaded configuration
func Service(l logger.Logger) (*tether.Service, error) {
	return tether.New(config.GetConfig(), l)
}
