package platewatch

import (
	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// Data types shared with adapters.
type (
	Frame         = domain.Frame
	Region        = domain.Region
	Candidate     = domain.Candidate
	Window        = domain.Window
	Record        = domain.Record
	WindowPayload = domain.WindowPayload
	RegionProfile = domain.RegionProfile
)

// Region profiles.
const (
	ProfileUSA = domain.ProfileUSA
	ProfileEU  = domain.ProfileEU
	ProfileIN  = domain.ProfileIN
)

// ParseRegionProfile parses a profile name such as "USA", "EU" or "IN".
func ParseRegionProfile(s string) (RegionProfile, error) {
	return domain.ParseRegionProfile(s)
}

// Validate reports whether text is a well-formed plate for profile.
func Validate(text string, profile RegionProfile) bool {
	return domain.Validate(text, profile)
}

// Collaborator interfaces.
type (
	FrameSource   = ports.FrameSource
	Detector      = ports.Detector
	Recognizer    = ports.Recognizer
	WindowSink    = ports.WindowSink
	Annotator     = ports.Annotator
	AnnotatorFunc = ports.AnnotatorFunc
	Clock         = ports.Clock
	Logger        = ports.Logger
	LogField      = ports.Field
)

// Errors returned by the pipeline. Check with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrEndOfStream     = domain.ErrEndOfStream
	ErrLowConfidence   = domain.ErrLowConfidence
	ErrFlushExhausted  = domain.ErrFlushExhausted
)
