// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// The pipeline core in internal/app depends only on these interfaces. Adapters
// in internal/adapters implement them against cameras, image directories,
// recognition engines and storage backends.
//
// # Port Interfaces
//
//   - [FrameSource]: Produces frames until the end of the stream
//   - [Detector]: Finds candidate plate regions in a frame
//   - [Recognizer]: Reads the text inside one region
//   - [WindowSink]: Persists a closed aggregation window atomically
//   - [Annotator]: Receives display annotations for accepted plates
//   - [Clock]: Time source, replaced by a fake clock in tests
//   - [Logger]: Structured logging abstraction
//   - [HTTPClient]: request executor used by the webhook sink
package ports
