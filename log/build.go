package log

import (
	"cldpip/config"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Bootstrap returns a context carrying a logger usable before the config
// file is read.
func Bootstrap(debug bool) (context.Context, error) {
	var logger *zap.Logger
	var err error

	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		return nil, fmt.Errorf("failed creating logger: %w", err)
	}

	return WithLogger(context.Background(), logger), nil
}

// Build constructs the real logger from the [log] section. level, when
// non-nil, wins over the configured level.
func Build(parent context.Context, c config.Log, debug bool, node string, level *zap.AtomicLevel) (context.Context, error) {
	var logOption zap.Config
	if debug {
		logOption = zap.NewDevelopmentConfig()
	} else {
		logOption = zap.NewProductionConfig()
	}

	if c.Level != nil {
		logOption.Level.SetLevel(*c.Level)
	}

	if level != nil {
		logOption.Level = *level
	}

	if c.Encoding != nil {
		logOption.Encoding = *c.Encoding
	}

	if c.InfoPath != nil {
		logOption.OutputPaths = *c.InfoPath
	}

	if c.ErrorPath != nil {
		logOption.ErrorOutputPaths = *c.ErrorPath
	}

	if node != "" {
		logOption.InitialFields = map[string]interface{}{
			"node": node,
		}
	}

	logger, err := logOption.Build()
	if err != nil {
		S(parent).Errorw("cannot build real logger", zap.Error(err))
		return nil, fmt.Errorf("cannot build logger: %w", err)
	}

	return WithLogger(parent, logger), nil
}
