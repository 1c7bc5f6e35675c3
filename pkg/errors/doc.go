// Package errors provides structured error types for better observability
// and programmatic error handling across the exporter.
//
// Collection failures are classified with one of the collection codes
// (ErrCodeExecutionTimeout, ErrCodeExecutionFailure, ErrCodeParseWarning,
// ErrCodeNoStatistics, ErrCodeDiscoveryFailure). These are recorded as data
// in a snapshot rather than returned to scrape clients.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeExecutionTimeout,
//	    "ethtool did not complete",
//	    ctx.Err(),
//	    map[string]any{
//	        "command":   "ethtool",
//	        "interface": "eth0",
//	    },
//	)
package errors
