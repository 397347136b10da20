// Package platewatch provides an embeddable license plate recognition
// pipeline.
//
// Frames are read from a [FrameSource] into a bounded queue and analyzed in
// acquisition order: a [Detector] locates plate regions, a [Recognizer]
// reads their text, and readings that clear the confidence threshold and the
// region grammar are collected into time windows. Every closed window is
// handed to a [WindowSink], which persists each distinct plate once with the
// window's start and end time.
//
// # Basic Usage
//
//	p, err := platewatch.New(platewatch.Config{
//	    Profile:        platewatch.ProfileEU,
//	    WindowDuration: 20 * time.Second,
//	}, platewatch.Components{
//	    Source:     source,
//	    Detector:   detector,
//	    Recognizer: recognizer,
//	    Sink:       sink,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := p.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Shutdown
//
// [Platewatch.Stop] stops acquisition, analyzes the frames already queued,
// closes the open window and flushes it, retrying failed flushes until the
// shutdown timeout. When the source ends on its own the same drain happens
// and [Platewatch.Done] is closed afterwards. [Platewatch.Abort] skips the
// drain.
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it with
// [WithEventHandler] to observe state changes, analyzed frames, rejected
// readings and window persistence. [WithMetrics] exports the same activity
// as Prometheus metrics.
//
// # Lifecycle States
//
// An instance moves from [StateIdle] to [StateRunning], [StateDraining] and
// finally [StateStopped]. Instances are not restartable.
package platewatch
