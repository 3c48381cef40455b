package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
)

var (
	// ErrNoDevice means no camera is available; nothing can be captured.
	ErrNoDevice = errors.New("no camera device found")
	// ErrPermissionDenied means camera or microphone access was refused.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrRecording wraps failures reported while starting or finishing a video.
	ErrRecording = errors.New("video recording failed")
	// ErrRecordingActive rejects photo capture while a video is recording.
	ErrRecordingActive = errors.New("video recording in progress")
)

// RecordingCallbacks receive the outcome of a recording. Exactly one of them
// is called per recording.
type RecordingCallbacks struct {
	Finished func(path string)
	Failed   func(err error)
}

// Device is the camera driver.
type Device interface {
	// TakePhoto returns the path of the captured photo.
	TakePhoto(ctx context.Context) (string, error)
	StartRecording(ctx context.Context, callbacks RecordingCallbacks) error
	StopRecording(ctx context.Context) error
}

// Permissions reports and requests capture permissions.
type Permissions interface {
	Camera() bool
	Microphone() bool
	RequestCamera(ctx context.Context) (bool, error)
	RequestMicrophone(ctx context.Context) (bool, error)
}

// MediaSink receives captured media, typically the open log draft.
type MediaSink interface {
	AddMedia(ref domain.MediaRef)
}

// Result is the outcome of a finished recording.
type Result struct {
	Media domain.MediaRef
	Err   error
}

// Screen coordinates one capture session against a device.
type Screen struct {
	device  Device
	perms   Permissions
	sink    MediaSink
	logger  *slog.Logger
	results chan Result

	mu              sync.Mutex
	recording       bool
	askedCamera     bool
	askedMicrophone bool
}

// NewScreen builds a capture screen. A missing device is a hard stop.
func NewScreen(device Device, perms Permissions, sink MediaSink, logger *slog.Logger) (*Screen, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Screen{device: device, perms: perms, sink: sink, logger: logger, results: make(chan Result, 1)}, nil
}

// Ready checks camera and microphone permission, asking for each at most once
// per screen. Either denial keeps the whole screen closed.
func (s *Screen) Ready(ctx context.Context) error {
	var denied []string
	camera, err := s.ensure(ctx, s.perms.Camera, s.perms.RequestCamera, &s.askedCamera)
	if err != nil {
		return fmt.Errorf("request camera permission: %w", err)
	}
	if !camera {
		denied = append(denied, "camera")
	}
	mic, err := s.ensure(ctx, s.perms.Microphone, s.perms.RequestMicrophone, &s.askedMicrophone)
	if err != nil {
		return fmt.Errorf("request microphone permission: %w", err)
	}
	if !mic {
		denied = append(denied, "microphone")
	}
	if len(denied) > 0 {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.Join(denied, ", "))
	}
	return nil
}

func (s *Screen) ensure(ctx context.Context, granted func() bool, request func(context.Context) (bool, error), asked *bool) (bool, error) {
	if granted() {
		return true, nil
	}
	s.mu.Lock()
	first := !*asked
	*asked = true
	s.mu.Unlock()
	if !first {
		return false, nil
	}
	return request(ctx)
}

// Recording reports whether a video is being recorded.
func (s *Screen) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Results delivers the outcome of each recording.
func (s *Screen) Results() <-chan Result {
	return s.results
}

// TakePhoto captures a photo and hands it to the sink immediately.
func (s *Screen) TakePhoto(ctx context.Context) (domain.MediaRef, error) {
	if err := s.Ready(ctx); err != nil {
		return domain.MediaRef{}, err
	}
	if s.Recording() {
		return domain.MediaRef{}, ErrRecordingActive
	}
	path, err := s.device.TakePhoto(ctx)
	if err != nil {
		return domain.MediaRef{}, fmt.Errorf("take photo: %w", err)
	}
	ref := domain.MediaRef{URI: domain.FileURI(path), Type: domain.MediaPhoto}
	s.sink.AddMedia(ref)
	s.logger.Debug("photo captured", "uri", ref.URI)
	return ref, nil
}

// StartRecording begins a video. The media reaches the sink only once the
// device reports the finished file.
func (s *Screen) StartRecording(ctx context.Context) error {
	if err := s.Ready(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.recording {
		s.mu.Unlock()
		return ErrRecordingActive
	}
	s.recording = true
	s.mu.Unlock()

	err := s.device.StartRecording(ctx, RecordingCallbacks{
		Finished: s.finished,
		Failed:   s.failed,
	})
	if err != nil {
		s.setRecording(false)
		return fmt.Errorf("%w: %v", ErrRecording, err)
	}
	return nil
}

// StopRecording asks the device to finish the current video.
func (s *Screen) StopRecording(ctx context.Context) error {
	if !s.Recording() {
		return nil
	}
	if err := s.device.StopRecording(ctx); err != nil {
		s.setRecording(false)
		return fmt.Errorf("%w: %v", ErrRecording, err)
	}
	return nil
}

func (s *Screen) finished(path string) {
	s.setRecording(false)
	ref := domain.MediaRef{URI: domain.FileURI(path), Type: domain.MediaVideo}
	s.sink.AddMedia(ref)
	s.logger.Debug("video captured", "uri", ref.URI)
	s.publish(Result{Media: ref})
}

func (s *Screen) failed(err error) {
	s.setRecording(false)
	s.logger.Warn("recording failed", "error", err)
	s.publish(Result{Err: fmt.Errorf("%w: %v", ErrRecording, err)})
}

func (s *Screen) publish(result Result) {
	select {
	case s.results <- result:
	default:
		s.logger.Warn("recording result dropped, no reader")
	}
}

func (s *Screen) setRecording(v bool) {
	s.mu.Lock()
	s.recording = v
	s.mu.Unlock()
}
