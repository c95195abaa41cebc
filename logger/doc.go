// Package logger provides structured logging on top of zerolog.
//
// Loggers are scoped per service and per component, and take their
// structured fields as plain maps:
//
//	log := logger.NewDefault("gateway").WithComponent("upstream")
//	log.Warn("bootstrap attempt failed", map[string]interface{}{
//	    "upstream": "billing-service", "attempt": 2,
//	})
package logger
