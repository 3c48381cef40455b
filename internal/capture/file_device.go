package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileDevice "captures" files that already exist on disk. The CLI uses it
// to attach media recorded by other tools.
type FileDevice struct {
	PhotoPath string
	VideoPath string

	mu        sync.Mutex
	callbacks *RecordingCallbacks
}

// TakePhoto implements Device.
func (d *FileDevice) TakePhoto(context.Context) (string, error) {
	return existing(d.PhotoPath)
}

// StartRecording implements Device.
func (d *FileDevice) StartRecording(_ context.Context, callbacks RecordingCallbacks) error {
	if d.VideoPath == "" {
		return errors.New("no video file configured")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = &callbacks
	return nil
}

// StopRecording implements Device. The outcome is reported asynchronously
// through the callbacks passed to StartRecording.
func (d *FileDevice) StopRecording(context.Context) error {
	d.mu.Lock()
	callbacks := d.callbacks
	d.callbacks = nil
	d.mu.Unlock()
	if callbacks == nil {
		return errors.New("not recording")
	}
	go func() {
		path, err := existing(d.VideoPath)
		if err != nil {
			callbacks.Failed(err)
			return
		}
		callbacks.Finished(path)
	}()
	return nil
}

func existing(path string) (string, error) {
	if path == "" {
		return "", errors.New("no file configured")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

// StaticPermissions is a fixed permission state.
type StaticPermissions struct {
	CameraGranted     bool
	MicrophoneGranted bool
}

// GrantAll allows camera and microphone.
func GrantAll() *StaticPermissions {
	return &StaticPermissions{CameraGranted: true, MicrophoneGranted: true}
}

func (p *StaticPermissions) Camera() bool     { return p.CameraGranted }
func (p *StaticPermissions) Microphone() bool { return p.MicrophoneGranted }

func (p *StaticPermissions) RequestCamera(context.Context) (bool, error) {
	return p.CameraGranted, nil
}

func (p *StaticPermissions) RequestMicrophone(context.Context) (bool, error) {
	return p.MicrophoneGranted, nil
}
