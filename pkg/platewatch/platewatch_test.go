package platewatch

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bft-labs/platewatch/internal/adapters/fullframe"
	"github.com/bft-labs/platewatch/internal/adapters/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// frameSource yields one frame per text, then ends the stream.
type frameSource struct {
	mu     sync.Mutex
	n      int
	next   int
	closed bool
}

func (s *frameSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= s.n {
		return Frame{}, ErrEndOfStream
	}
	s.next++
	return Frame{
		Seq:        uint64(s.next),
		CapturedAt: time.Now(),
		Image:      image.NewGray(image.Rect(0, 0, 64, 16)),
	}, nil
}

func (s *frameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// readings maps a frame sequence number to the candidate read from it.
type readings map[uint64]Candidate

func (r readings) Recognize(ctx context.Context, frame Frame, region Region) (Candidate, error) {
	c, ok := r[frame.Seq]
	if !ok {
		return Candidate{}, errors.New("unreadable")
	}
	return c, nil
}

type closingRecognizer struct {
	readings
	closes int
}

func (r *closingRecognizer) Close() error {
	r.closes++
	return nil
}

type recordingHandler struct {
	BaseEventHandler

	mu       sync.Mutex
	states   []State
	frames   int
	rejected map[string]int
	flushed  []WindowFlushedEvent
	dropped  []WindowDroppedEvent
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{rejected: map[string]int{}}
}

func (h *recordingHandler) OnStateChange(e StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e.Current)
}

func (h *recordingHandler) OnFrameAnalyzed(FrameAnalyzedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames++
}

func (h *recordingHandler) OnCandidateRejected(e CandidateRejectedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected[e.Reason]++
}

func (h *recordingHandler) OnWindowFlushed(e WindowFlushedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flushed = append(h.flushed, e)
}

func (h *recordingHandler) OnWindowDropped(e WindowDroppedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropped = append(h.dropped, e)
}

func testReadings() readings {
	return readings{
		1: {Text: "ABC123", Confidence: 0.9},
		2: {Text: "ABC-123", Confidence: 0.8},
		3: {Text: "TOOLONG12", Confidence: 0.9},
		4: {Text: "XYZ9", Confidence: 0.5},
		5: {Text: "XYZ 9", Confidence: 0.95},
	}
}

func TestPlatewatchEndOfStreamFlushesWindow(t *testing.T) {
	source := &frameSource{n: 6}
	sink := memory.NewSink()
	handler := newRecordingHandler()

	p, err := New(Config{}, Components{
		Source:     source,
		Detector:   fullframe.Detector{},
		Recognizer: testReadings(),
		Sink:       sink,
	}, WithEventHandler(handler))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, p.Status())

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Wait())

	assert.Equal(t, StateStopped, p.Status())
	assert.True(t, source.closed)

	windows := sink.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, []string{"ABC123", "XYZ9"}, windows[0].Plates)

	stats := p.Stats()
	assert.Equal(t, uint64(6), stats.Enqueued)
	assert.Equal(t, uint64(6), stats.Analyzed)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []State{StateRunning, StateDraining, StateStopped}, handler.states)
	assert.Equal(t, 6, handler.frames)
	assert.Equal(t, 1, handler.rejected[RejectGrammar])
	assert.Equal(t, 1, handler.rejected[RejectLowConfidence])
	assert.Equal(t, 1, handler.rejected[RejectRecognizerError])
	require.Len(t, handler.flushed, 1)
	assert.Equal(t, 1, handler.flushed[0].Attempt)
}

func TestPlatewatchReportsLostWindows(t *testing.T) {
	sink := memory.NewSink()
	sink.FailWith(errors.New("disk full"))
	handler := newRecordingHandler()

	p, err := New(Config{
		Retry: RetryPolicy{Initial: time.Millisecond, Max: 2 * time.Millisecond, MaxAttempts: 2},
	}, Components{
		Source:     &frameSource{n: 1},
		Detector:   fullframe.Detector{},
		Recognizer: testReadings(),
		Sink:       sink,
	}, WithEventHandler(handler))
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	err = p.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlushExhausted)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.dropped, 1)
	assert.Equal(t, []string{"ABC123"}, handler.dropped[0].Plates)
}

func TestPlatewatchClosesComponentsOnce(t *testing.T) {
	recognizer := &closingRecognizer{readings: testReadings()}

	p, err := New(Config{}, Components{
		Source:     &frameSource{n: 2},
		Detector:   fullframe.Detector{},
		Recognizer: recognizer,
		Sink:       memory.NewSink(),
	})
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Wait())
	assert.Equal(t, 1, recognizer.closes)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Wait")
	}
}

func TestPlatewatchLifecycleErrors(t *testing.T) {
	p, err := New(Config{}, Components{
		Source:     &frameSource{n: 1},
		Detector:   fullframe.Detector{},
		Recognizer: testReadings(),
		Sink:       memory.NewSink(),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Stop(), ErrNotRunning)
	assert.ErrorIs(t, p.Wait(), ErrNotRunning)

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyRunning)
	require.NoError(t, p.Wait())
	assert.NoError(t, p.Stop())
}

func TestNewRejectsInvalidInput(t *testing.T) {
	valid := Components{
		Source:     &frameSource{},
		Detector:   fullframe.Detector{},
		Recognizer: readings{},
		Sink:       memory.NewSink(),
	}

	tests := []struct {
		name       string
		cfg        Config
		components func() Components
	}{
		{"missing source", Config{}, func() Components { c := valid; c.Source = nil; return c }},
		{"missing detector", Config{}, func() Components { c := valid; c.Detector = nil; return c }},
		{"missing recognizer", Config{}, func() Components { c := valid; c.Recognizer = nil; return c }},
		{"missing sink", Config{}, func() Components { c := valid; c.Sink = nil; return c }},
		{"negative window", Config{WindowDuration: -time.Second}, func() Components { return valid }},
		{"threshold out of range", Config{ConfidenceThreshold: 1.5}, func() Components { return valid }},
		{"unknown profile", Config{Profile: RegionProfile(42)}, func() Components { return valid }},
		{"backoff inverted", Config{Retry: RetryPolicy{Initial: time.Second, Max: time.Millisecond}}, func() Components { return valid }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.components())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, ProfileUSA, cfg.Profile)
	assert.Equal(t, 20*time.Second, cfg.WindowDuration)
	assert.Equal(t, 0.60, cfg.ConfidenceThreshold)
	assert.Equal(t, DefaultArtifacts, cfg.Artifacts)
	assert.Equal(t, 10, cfg.QueueCapacity)
	assert.Equal(t, DefaultRetryPolicy(), cfg.Retry)
	assert.NoError(t, cfg.Validate())

	noArtifacts := Config{NoArtifacts: true}
	noArtifacts.SetDefaults()
	assert.Empty(t, noArtifacts.Artifacts)
}

func TestConfigSetDefaults_ExplicitZeroes(t *testing.T) {
	cfg := Config{ZeroConfidenceThreshold: true, UnlimitedSourceErrors: true}
	cfg.SetDefaults()

	assert.Zero(t, cfg.ConfidenceThreshold)
	assert.Zero(t, cfg.MaxSourceErrors)
	assert.NoError(t, cfg.Validate())

	cfg = Config{ConfidenceThreshold: 0.4, MaxSourceErrors: 3}
	cfg.SetDefaults()
	assert.Equal(t, 0.4, cfg.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.MaxSourceErrors)
}

func TestConfigValidate_ThresholdBounds(t *testing.T) {
	for _, threshold := range []float64{0.01, 0.6, 1} {
		cfg := Config{ConfidenceThreshold: threshold}
		cfg.SetDefaults()
		assert.NoError(t, cfg.Validate(), "threshold %v", threshold)
	}
	cfg := Config{ConfidenceThreshold: -0.1}
	cfg.SetDefaults()
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

type stubPlugin struct {
	name     string
	initErr  error
	log      *[]string
	statusFn func() State
}

func (s *stubPlugin) Name() string { return s.name }

func (s *stubPlugin) Initialize(ctx context.Context, cfg PluginConfig) error {
	*s.log = append(*s.log, "init "+s.name)
	s.statusFn = cfg.Status
	return s.initErr
}

func (s *stubPlugin) Shutdown(ctx context.Context) error {
	*s.log = append(*s.log, "shutdown "+s.name)
	return nil
}

func TestPluginsShareLifetime(t *testing.T) {
	var calls []string
	a := &stubPlugin{name: "a", log: &calls}
	b := &stubPlugin{name: "b", log: &calls}

	p, err := New(Config{}, Components{
		Source:     &frameSource{n: 1},
		Detector:   fullframe.Detector{},
		Recognizer: testReadings(),
		Sink:       memory.NewSink(),
	}, WithPlugin(a), WithPlugin(b))
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Wait())

	assert.Equal(t, []string{"init a", "init b", "shutdown b", "shutdown a"}, calls)
	assert.Equal(t, StateStopped, a.statusFn())
}

func TestPluginInitFailureAbortsStart(t *testing.T) {
	var calls []string
	a := &stubPlugin{name: "a", log: &calls}
	b := &stubPlugin{name: "b", log: &calls, initErr: errors.New("port in use")}

	p, err := New(Config{}, Components{
		Source:     &frameSource{n: 1},
		Detector:   fullframe.Detector{},
		Recognizer: testReadings(),
		Sink:       memory.NewSink(),
	}, WithPlugin(a), WithPlugin(b))
	require.NoError(t, err)

	err = p.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port in use")
	assert.Equal(t, []string{"init a", "init b", "shutdown a"}, calls)
	assert.Equal(t, StateIdle, p.Status())
}
