package httpserver

import "time"

const (
	defaultPort = "8080"

	readTimeout       = 10 * time.Second
	readHeaderTimeout = 3 * time.Second
	idleTimeout       = 60 * time.Second
	maxHeaderBytes    = 1 << 12 // 4kb
	maxBodyBytes      = 1 << 20 // 1mb

	// A replay includes the image pull and scan, so API responses may take minutes.
	apiWriteTimeout     = 20 * time.Minute
	metricsWriteTimeout = 5 * time.Second

	readyCheckTimeout = 3 * time.Second
)
