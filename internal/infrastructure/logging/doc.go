// Package logging builds the bridge's log/slog logger from configuration.
//
// Records are JSON by default or text when format is "text", and always
// carry service and version attributes. Output goes to stdout, stderr or
// a lumberjack-rotated file:
//
//	logging:
//	  level: info        # debug, info, warn, error
//	  format: json       # json, text
//	  output: file       # stdout, stderr, file
//	  file:
//	    path: ./logs/eltako2mqtt.log
//	    max_size: 10     # megabytes
//	    max_backups: 5
//	    max_age: 28      # days
//
// Loggers derived with With share the root logger's file; only the root
// closes it. The gateway password and broker credentials must never be
// passed as attributes.
package logging
