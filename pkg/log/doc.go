// Package log provides the logging abstraction used across platewatch.
//
// The pipeline, the analysis stage and every sink adapter log through the
// [Logger] interface so that embedding applications can plug in their own
// logging library. A zerolog-backed implementation and a no-op logger are
// provided.
//
// # Usage
//
// Use the zerolog adapter with console output:
//
//	logger := log.NewZerologAdapter()
//
// Or wrap an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// The no-op logger discards everything and is the library default:
//
//	logger := log.NewNoopLogger()
package log
