package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 layout used for persisted window boundaries.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Window is the set of distinct plates accepted during one time interval.
// Plates keep set semantics; the first-seen order is preserved for output.
// End is zero until the window is closed at rollover.
type Window struct {
	// ID uniquely identifies the window across restarts.
	ID string

	// Start is when the window was opened.
	Start time.Time

	// End is when the window was closed; zero while the window is open.
	End time.Time

	plates map[string]struct{}
	order  []string
}

// NewWindow opens an empty window starting at start.
func NewWindow(start time.Time) *Window {
	return &Window{
		ID:     uuid.NewString(),
		Start:  start,
		plates: make(map[string]struct{}),
	}
}

// Offer adds plate to the window if it is not present yet.
// Returns true when the plate was new.
func (w *Window) Offer(plate string) bool {
	if _, ok := w.plates[plate]; ok {
		return false
	}
	w.plates[plate] = struct{}{}
	w.order = append(w.order, plate)
	return true
}

// Contains reports whether plate was accepted in this window.
func (w *Window) Contains(plate string) bool {
	_, ok := w.plates[plate]
	return ok
}

// Len returns the number of distinct plates.
func (w *Window) Len() int {
	return len(w.order)
}

// Empty returns true if the window holds no plates.
func (w *Window) Empty() bool {
	return len(w.order) == 0
}

// Plates returns a copy of the plates in first-seen order.
func (w *Window) Plates() []string {
	return append([]string(nil), w.order...)
}

// Close assigns the end of the window. End is kept strictly after Start even
// when the clock has not advanced between open and close.
func (w *Window) Close(end time.Time) {
	if !end.After(w.Start) {
		end = w.Start.Add(time.Nanosecond)
	}
	w.End = end
}

// Closed reports whether the window has been closed.
func (w *Window) Closed() bool {
	return !w.End.IsZero()
}

// Clear drops every plate. Called once the window has been persisted.
func (w *Window) Clear() {
	w.plates = make(map[string]struct{})
	w.order = nil
}

// Elapsed returns how long the window has been open at now.
func (w *Window) Elapsed(now time.Time) time.Duration {
	return now.Sub(w.Start)
}

// Records returns one record per plate, tagged with the window boundaries.
func (w *Window) Records() []Record {
	records := make([]Record, len(w.order))
	for i, p := range w.order {
		records[i] = Record{Start: w.Start, End: w.End, Plate: p}
	}
	return records
}

// Payload returns the serializable form of the window.
func (w *Window) Payload() WindowPayload {
	return WindowPayload{
		ID:        w.ID,
		StartTime: FormatTimestamp(w.Start),
		EndTime:   FormatTimestamp(w.End),
		Plates:    w.Plates(),
	}
}

// Record is one persisted row. Records are written once and never updated.
type Record struct {
	Start time.Time
	End   time.Time
	Plate string
}

// StartTime returns the ISO-8601 start timestamp.
func (r Record) StartTime() string {
	return FormatTimestamp(r.Start)
}

// EndTime returns the ISO-8601 end timestamp.
func (r Record) EndTime() string {
	return FormatTimestamp(r.End)
}

// WindowPayload is the wire form of a closed window used by message and file sinks.
type WindowPayload struct {
	ID        string   `json:"id"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Plates    []string `json:"plates"`
}

// RecordPayload is the wire form of a single record.
type RecordPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Plate     string `json:"plate"`
}

// Payload returns the serializable form of the record.
func (r Record) Payload() RecordPayload {
	return RecordPayload{StartTime: r.StartTime(), EndTime: r.EndTime(), Plate: r.Plate}
}
