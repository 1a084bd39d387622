package util

import (
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// GetStdLogger bridges components that only accept a *log.Logger, such as
// http.Server, into zap at warn level.
func GetStdLogger(parent *zap.Logger, sub string) *log.Logger {
	logger, err := zap.NewStdLogAt(parent.With(zap.String("subsystem", sub)), zapcore.WarnLevel)
	if err != nil {
		panic(fmt.Errorf("error getting logger: %w", err))
	}
	return logger
}

// FilterLogger narrows parent with zapfilter rules, such as
// "info:overlay debug:journal". An empty rule set returns parent as is.
func FilterLogger(parent *zap.Logger, rules string) (*zap.Logger, error) {
	if strings.TrimSpace(rules) == "" {
		return parent, nil
	}
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, fmt.Errorf("error parsing log filter %q: %w", rules, err)
	}
	return zap.New(zapfilter.NewFilteringCore(parent.Core(), filter)), nil
}

// DropMessages filters out entries whose message starts with any prefix.
func DropMessages(parent *zap.Logger, prefixes ...string) *zap.Logger {
	return zap.New(zapfilter.NewFilteringCore(
		parent.Core(),
		func(e zapcore.Entry, f []zapcore.Field) bool {
			for _, p := range prefixes {
				if strings.HasPrefix(e.Message, p) {
					return false
				}
			}
			return true
		}),
	)
}
