package app

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// Analyzer runs detection, recognition, validation and aggregation for one frame.
type Analyzer struct {
	detector   ports.Detector
	recognizer ports.Recognizer
	normalizer domain.Normalizer
	profile    domain.RegionProfile
	aggregator *Aggregator
	annotator  ports.Annotator
	clock      ports.Clock
	logger     ports.Logger
	emitter    PipelineEventEmitter
}

// AnalyzerConfig configures the analysis stage.
type AnalyzerConfig struct {
	Profile   domain.RegionProfile
	Artifacts string
}

// NewAnalyzer creates an analysis stage. annotator may be nil.
func NewAnalyzer(
	config AnalyzerConfig,
	detector ports.Detector,
	recognizer ports.Recognizer,
	aggregator *Aggregator,
	annotator ports.Annotator,
	clock ports.Clock,
	logger ports.Logger,
	emitter PipelineEventEmitter,
) *Analyzer {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Analyzer{
		detector:   detector,
		recognizer: recognizer,
		normalizer: domain.NewNormalizer(config.Profile, config.Artifacts),
		profile:    config.Profile,
		aggregator: aggregator,
		annotator:  annotator,
		clock:      clock,
		logger:     logger,
		emitter:    emitter,
	}
}

// Analyze processes one frame and returns the number of plates accepted.
// Detector and recognizer failures are logged and skipped; they never abort
// the pipeline.
func (a *Analyzer) Analyze(ctx context.Context, frame domain.Frame) int {
	start := time.Now()
	accepted := 0

	regions, err := a.detector.Detect(ctx, frame)
	if err != nil {
		a.logger.Warn("detection failed",
			ports.Err(err),
			ports.Uint64("frame", frame.Seq),
		)
		a.emitter.OnDetectError(err)
		regions = nil
	}

	for _, region := range regions {
		if frame.Image != nil {
			r, err := region.Clip(frame.Bounds())
			if err != nil {
				a.logger.Debug("region skipped", ports.Err(err), ports.Uint64("frame", frame.Seq))
				a.emitter.OnCandidateRejected(RejectMalformedRegion)
				continue
			}
			region = domain.Region{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y, Score: region.Score}
		}
		if a.analyzeRegion(ctx, frame, region) {
			accepted++
		}
	}

	a.aggregator.MaybeRollover(ctx, a.clock.Now())
	a.emitter.OnFrameAnalyzed(frame, accepted, time.Since(start))
	return accepted
}

func (a *Analyzer) analyzeRegion(ctx context.Context, frame domain.Frame, region domain.Region) bool {
	candidate, err := a.recognizer.Recognize(ctx, frame, region)
	if err != nil {
		if errors.Is(err, domain.ErrLowConfidence) {
			a.logger.Debug("candidate below threshold", ports.Err(err))
			a.emitter.OnCandidateRejected(RejectLowConfidence)
			return false
		}
		a.logger.Warn("recognition failed",
			ports.Err(err),
			ports.Uint64("frame", frame.Seq),
			ports.String("region", region.String()),
		)
		a.emitter.OnCandidateRejected(RejectRecognizerError)
		return false
	}

	plate := a.normalizer.Normalize(candidate.Text)
	if !domain.Validate(plate, a.profile) {
		a.logger.Debug("candidate rejected",
			ports.String("raw", candidate.Text),
			ports.String("normalized", plate),
			ports.String("profile", a.profile.String()),
		)
		a.emitter.OnCandidateRejected(RejectGrammar)
		return false
	}

	a.aggregator.Offer(plate, a.clock.Now())
	if a.annotator != nil {
		a.annotator.Annotate(frame, region, plate)
	}
	return true
}
