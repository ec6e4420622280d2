// Package httpserver runs an http.Server bound to a context.
//
// Run listens on the configured address and blocks until the context is
// cancelled, then shuts the server down with a bounded grace period. Signal
// handling is left to the caller, typically via signal.NotifyContext:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// LivenessHandler and ReadinessHandler serve the usual health checks.
// Listen failures are wrapped with ErrStart, shutdown failures with
// ErrShutdown.
package httpserver
