// Package capture implements the add-item flow: acquire a photo from the
// camera or a file, crop it, collect the item details and hand the result to
// the wardrobe. A Session lives for one interaction and is never persisted.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/erazemk/omara/internal/imaging"
	"github.com/erazemk/omara/internal/validate"
)

// Step is the current stage of a session.
type Step string

// Session steps.
const (
	StepCapture Step = "capture"
	StepCrop    Step = "crop"
	StepDetails Step = "details"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current step.
	ErrInvalidTransition = errors.New("invalid step transition")
	// ErrClosed is returned for any action after Submit, Cancel or Close.
	ErrClosed = errors.New("capture session closed")
	// ErrNoStream is returned by TakePhoto when no camera stream is active.
	ErrNoStream = errors.New("no active camera stream")
)

// Result is the terminal output of a successful session.
type Result struct {
	Image   []byte
	Name    string
	MIME    string
	Details validate.Fields
}

// Session is the capture -> crop -> details state machine.
type Session struct {
	mu sync.Mutex

	step    Step
	closed  bool
	stream  Stream
	source  image.Image
	cropped []byte
	rect    image.Rectangle
	details validate.Fields

	now func() time.Time
}

// NewSession starts a session in the capture step.
func NewSession() *Session {
	return &Session{step: StepCapture, now: time.Now}
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Source returns the loaded source image, or nil before capture.
func (s *Session) Source() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Cropped returns the encoded crop and its source rectangle.
func (s *Session) Cropped() ([]byte, image.Rectangle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cropped, s.rect
}

// StartCamera acquires a camera stream. On failure the session stays in the
// capture step and LoadFile can still be used.
func (s *Session) StartCamera(ctx context.Context, cam Camera) error {
	s.mu.Lock()
	if err := s.expect(StepCapture); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.stream != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	stream, err := cam.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The session may have moved on while the permission prompt was open.
	if s.closed || s.step != StepCapture || s.stream != nil {
		stopTracks(stream)
		if s.closed {
			return ErrClosed
		}
		return ErrInvalidTransition
	}
	s.stream = stream
	return nil
}

// TakePhoto grabs a frame from the live stream, releases the camera and
// moves to the crop step. The session is not locked while the frame is
// taken, so Cancel and Close never wait for the camera.
func (s *Session) TakePhoto(ctx context.Context) error {
	s.mu.Lock()
	if err := s.expect(StepCapture); err != nil {
		s.mu.Unlock()
		return err
	}
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return ErrNoStream
	}

	img, err := stream.Snapshot(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.step != StepCapture || s.stream != stream {
		return ErrInvalidTransition
	}
	if err != nil {
		return fmt.Errorf("taking photo: %w", err)
	}

	s.release()
	s.source = img
	s.step = StepCrop
	return nil
}

// LoadFile decodes a picked file and moves to the crop step. A live camera
// stream is released.
func (s *Session) LoadFile(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepCapture); err != nil {
		return err
	}

	img, _, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("loading file: %w", err)
	}

	s.release()
	s.source = img
	s.step = StepCrop
	return nil
}

// ApplyCrop rasterizes the selection and moves to the details step.
func (s *Session) ApplyCrop(r Region, displayed Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepCrop); err != nil {
		return err
	}

	data, rect, err := Rasterize(s.source, r, displayed)
	if err != nil {
		return fmt.Errorf("cropping: %w", err)
	}

	s.cropped = data
	s.rect = rect
	s.step = StepDetails
	return nil
}

// Recrop goes back from details to crop, discarding the previous crop.
func (s *Session) Recrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepDetails); err != nil {
		return err
	}
	s.cropped = nil
	s.rect = image.Rectangle{}
	s.step = StepCrop
	return nil
}

// Retake goes back from crop to capture, discarding the source image.
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepCrop); err != nil {
		return err
	}
	s.source = nil
	s.step = StepCapture
	return nil
}

// SetDetails stores the pending form fields.
func (s *Session) SetDetails(f validate.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepDetails); err != nil {
		return err
	}
	s.details = f
	return nil
}

// Submit ends the session and returns the cropped image with the details.
func (s *Session) Submit() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(StepDetails); err != nil {
		return nil, err
	}

	res := &Result{
		Image:   s.cropped,
		Name:    fmt.Sprintf("capture-%d.jpg", s.now().UnixMilli()),
		MIME:    "image/jpeg",
		Details: s.details,
	}
	s.end()
	return res, nil
}

// Cancel discards all ephemeral state and releases the camera.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.end()
}

// Close is the teardown path. It is safe to call after Submit or Cancel.
func (s *Session) Close() {
	s.Cancel()
}

func (s *Session) expect(step Step) error {
	if s.closed {
		return ErrClosed
	}
	if s.step != step {
		return fmt.Errorf("%w: in %s, need %s", ErrInvalidTransition, s.step, step)
	}
	return nil
}

// release stops the stream's tracks. The stream is dropped so a second
// release is a no-op.
func (s *Session) release() {
	if s.stream == nil {
		return
	}
	stopTracks(s.stream)
	s.stream = nil
}

func (s *Session) end() {
	s.release()
	s.closed = true
	s.source = nil
	s.cropped = nil
	s.rect = image.Rectangle{}
	s.details = validate.Fields{}
}
