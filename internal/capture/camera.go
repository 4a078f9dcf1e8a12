package capture

import (
	"context"
	"errors"
	"image"
)

// ErrCameraUnavailable wraps camera acquisition failures (permission denied,
// no device). The file picker remains usable after it.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Camera acquires a live stream. Acquire may block on a permission prompt.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is a live camera feed.
type Stream interface {
	Snapshot(ctx context.Context) (image.Image, error)
	Tracks() []Track
}

// Track is one media track of a stream. Stopping releases the device.
type Track interface {
	Stop()
}

func stopTracks(s Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
