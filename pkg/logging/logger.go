// Package logging builds the service logger and keeps sensitive or oversized
// values out of log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root zap logger for the given environment.
// "local" gets a human-readable development logger at debug level;
// everything else gets the production JSON logger.
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)

	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}
