package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/omara/internal/validate"
)

type fakeTrack struct {
	mu    sync.Mutex
	stops int
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
}

func (t *fakeTrack) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

type fakeStream struct {
	tracks []*fakeTrack
	frame  image.Image

	// When set, Snapshot signals taking and then waits for shutter.
	taking  chan struct{}
	shutter chan struct{}
}

func (s *fakeStream) Snapshot(ctx context.Context) (image.Image, error) {
	if s.shutter != nil {
		close(s.taking)
		<-s.shutter
	}
	return s.frame, nil
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

type fakeCamera struct {
	stream *fakeStream
	err    error
	gate   chan struct{}
}

func (c *fakeCamera) Acquire(ctx context.Context) (Stream, error) {
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func newFakeCamera() *fakeCamera {
	frame := image.NewRGBA(image.Rect(0, 0, 400, 300))
	return &fakeCamera{stream: &fakeStream{
		tracks: []*fakeTrack{{}, {}},
		frame:  frame,
	}}
}

func assertStoppedOnce(t *testing.T, cam *fakeCamera) {
	t.Helper()
	for i, tr := range cam.stream.tracks {
		if n := tr.count(); n != 1 {
			t.Errorf("track %d stopped %d times, want 1", i, n)
		}
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{10, 20, 30, 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCameraReleasedOnCancelInCapture(t *testing.T) {
	cam := newFakeCamera()
	s := NewSession()
	if err := s.StartCamera(context.Background(), cam); err != nil {
		t.Fatalf("StartCamera: %v", err)
	}

	s.Cancel()
	s.Close()
	assertStoppedOnce(t, cam)
}

func TestCameraReleasedOnCancelInCrop(t *testing.T) {
	cam := newFakeCamera()
	s := NewSession()
	s.StartCamera(context.Background(), cam)

	if err := s.TakePhoto(context.Background()); err != nil {
		t.Fatalf("TakePhoto: %v", err)
	}
	if s.Step() != StepCrop {
		t.Fatalf("expected crop step, got %s", s.Step())
	}

	s.Cancel()
	assertStoppedOnce(t, cam)
}

func TestCameraReleasedOnTeardown(t *testing.T) {
	cam := newFakeCamera()
	s := NewSession()
	s.StartCamera(context.Background(), cam)

	s.Close()
	s.Close()
	assertStoppedOnce(t, cam)
}

func TestCameraReleasedWhenFilePickedInstead(t *testing.T) {
	cam := newFakeCamera()
	s := NewSession()
	s.StartCamera(context.Background(), cam)

	if err := s.LoadFile(testPNG(t, 40, 40)); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	s.Close()
	assertStoppedOnce(t, cam)
}

func TestCameraAcquiredAfterCloseIsReleased(t *testing.T) {
	cam := newFakeCamera()
	cam.gate = make(chan struct{})
	s := NewSession()

	done := make(chan error, 1)
	go func() { done <- s.StartCamera(context.Background(), cam) }()

	s.Close()
	close(cam.gate)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	assertStoppedOnce(t, cam)
}

func TestCameraFailureFallsBackToFilePicker(t *testing.T) {
	cam := &fakeCamera{err: errors.New("permission denied")}
	s := NewSession()

	err := s.StartCamera(context.Background(), cam)
	if !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
	if s.Step() != StepCapture {
		t.Errorf("expected to stay in capture, got %s", s.Step())
	}

	if err := s.LoadFile(testPNG(t, 20, 20)); err != nil {
		t.Fatalf("LoadFile after camera failure: %v", err)
	}
	if s.Step() != StepCrop {
		t.Errorf("expected crop step, got %s", s.Step())
	}
}

func TestFullFlowWithBackwardEdges(t *testing.T) {
	s := NewSession()
	if err := s.LoadFile(testPNG(t, 100, 100)); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	// crop -> capture -> crop
	if err := s.Retake(); err != nil {
		t.Fatalf("Retake: %v", err)
	}
	if s.Source() != nil {
		t.Error("expected source to be discarded on retake")
	}
	if err := s.LoadFile(testPNG(t, 100, 100)); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if err := s.ApplyCrop(DefaultRegion, Size{100, 100}); err != nil {
		t.Fatalf("ApplyCrop: %v", err)
	}

	// details -> crop -> details
	if err := s.Recrop(); err != nil {
		t.Fatalf("Recrop: %v", err)
	}
	if data, _ := s.Cropped(); data != nil {
		t.Error("expected crop to be discarded on recrop")
	}
	if err := s.ApplyCrop(Region{Unit: UnitPercent, Width: 50, Height: 50}, Size{100, 100}); err != nil {
		t.Fatalf("ApplyCrop: %v", err)
	}

	fields := validate.Fields{Color: "Blue", Category: "top", Occasion: "casual"}
	if err := s.SetDetails(fields); err != nil {
		t.Fatalf("SetDetails: %v", err)
	}

	res, err := s.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(res.Image) == 0 {
		t.Error("expected cropped image bytes")
	}
	if res.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", res.MIME)
	}
	if res.Details != fields {
		t.Errorf("expected details %+v, got %+v", fields, res.Details)
	}

	if err := s.Recrop(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after submit, got %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	s := NewSession()

	if err := s.ApplyCrop(DefaultRegion, Size{10, 10}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ApplyCrop in capture: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := s.Submit(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit in capture: expected ErrInvalidTransition, got %v", err)
	}
	if err := s.TakePhoto(context.Background()); !errors.Is(err, ErrNoStream) {
		t.Errorf("TakePhoto without stream: expected ErrNoStream, got %v", err)
	}
	if err := s.LoadFile([]byte("not an image")); err == nil {
		t.Error("expected error loading invalid file")
	}
	if s.Step() != StepCapture {
		t.Errorf("expected capture step after failures, got %s", s.Step())
	}
}

func TestCancelDuringTakePhoto(t *testing.T) {
	cam := newFakeCamera()
	cam.stream.taking = make(chan struct{})
	cam.stream.shutter = make(chan struct{})

	s := NewSession()
	if err := s.StartCamera(context.Background(), cam); err != nil {
		t.Fatalf("StartCamera: %v", err)
	}

	photo := make(chan error, 1)
	go func() { photo <- s.TakePhoto(context.Background()) }()
	<-cam.stream.taking

	cancelled := make(chan struct{})
	go func() {
		s.Cancel()
		close(cancelled)
	}()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("Cancel blocked while a photo was being taken")
	}

	close(cam.stream.shutter)
	if err := <-photo; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from TakePhoto, got %v", err)
	}
	if s.Source() != nil {
		t.Error("expected no source image after cancel")
	}
	assertStoppedOnce(t, cam)
}
