// Package video reads frames from cameras and video files and detects plate
// regions with a Haar cascade, both through OpenCV.
//
// The OpenCV-backed implementation is compiled only with the "gocv" build
// tag. Without it the constructors return ErrUnsupported.
package video

import "errors"

// ErrUnsupported is returned when the binary was built without OpenCV support.
var ErrUnsupported = errors.New("video: built without gocv support (rebuild with -tags gocv)")
