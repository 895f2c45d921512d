package http

import "log/slog"

func httpLogger() *slog.Logger {
	return slog.Default().With("module", "http", "layer", "adapter")
}
