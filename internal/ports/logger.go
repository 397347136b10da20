package ports

import (
	"time"

	"github.com/bft-labs/platewatch/pkg/log"
)

// Logger is the structured logger used throughout the application layer.
type Logger = log.Logger

// Field is a structured logging key/value pair.
type Field = log.Field

// Field constructors, re-exported so the application layer depends on ports only.
func String(key, value string) Field                 { return log.String(key, value) }
func Strings(key string, value []string) Field       { return log.Strings(key, value) }
func Int(key string, value int) Field                { return log.Int(key, value) }
func Int64(key string, value int64) Field            { return log.Int64(key, value) }
func Uint64(key string, value uint64) Field          { return log.Uint64(key, value) }
func Float64(key string, value float64) Field        { return log.Float64(key, value) }
func Bool(key string, value bool) Field              { return log.Bool(key, value) }
func Duration(key string, value time.Duration) Field { return log.Duration(key, value) }
func Time(key string, value time.Time) Field         { return log.Time(key, value) }
func Err(err error) Field                            { return log.Err(err) }
func Any(key string, value any) Field                { return log.Any(key, value) }
