package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/dooshek/nicoverlay/internal/logger"
	"github.com/gen2brain/malgo"
)

const (
	sampleRate = 44100
	channels   = 1
)

// CaptureStream reads mono float32 frames from the default capture device.
type CaptureStream struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	scratch []float32
}

func NewCaptureStream() *CaptureStream {
	return &CaptureStream{}
}

// Open initialises the audio context and device and starts capturing. On
// failure everything acquired so far is released again.
func (c *CaptureStream) Open(onFrame func(frame []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return fmt.Errorf("capture stream already open")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(outputBuffer, inputBuffer []byte, frameCount uint32) {
			onFrame(c.decode(inputBuffer))
		},
	})
	if err != nil {
		releaseContext(ctx)
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.ctx = ctx
	c.device = device
	logger.Debugf("Capture device started: %d Hz, %d channel(s), float32", sampleRate, channels)
	return nil
}

// decode runs on the driver thread only, so the scratch buffer is not shared.
func (c *CaptureStream) decode(in []byte) []float32 {
	n := len(in) / 4
	if cap(c.scratch) < n {
		c.scratch = make([]float32, n)
	}
	frame := c.scratch[:n]
	for i := range frame {
		frame[i] = math.Float32frombits(binary.LittleEndian.Uint32(in[4*i:]))
	}
	return frame
}

// Close stops the device and releases the context. Closing twice is a no-op.
func (c *CaptureStream) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	var stopErr error
	if err := c.device.Stop(); err != nil {
		stopErr = fmt.Errorf("failed to stop capture device: %w", err)
	}
	c.device.Uninit()
	c.device = nil

	releaseContext(c.ctx)
	c.ctx = nil

	return stopErr
}

func releaseContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		logger.Warnf("Failed to uninitialize audio context: %v", err)
	}
	ctx.Free()
}

// ListCaptureDevices returns the names of the available capture devices
func ListCaptureDevices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize audio context: %w", ErrDeviceUnavailable, err)
	}
	defer releaseContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}
