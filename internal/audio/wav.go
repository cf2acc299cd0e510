package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dooshek/nicoverlay/internal/logger"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVE_FORMAT_PCM
const wavFormatPCM = 1

// DefaultFrameSize is the number of mono samples per delivered frame
const DefaultFrameSize = 1024

// WAVStream replays a WAV file as a live input, one frame per frame period.
type WAVStream struct {
	path      string
	frameSize int
	loop      bool

	mu   sync.Mutex
	file *os.File
	stop chan struct{}
	done chan struct{}
}

func NewWAVStream(path string, loop bool) *WAVStream {
	return &WAVStream{path: path, frameSize: DefaultFrameSize, loop: loop}
}

// SetFrameSize changes the frame length in samples; it must be called before Open.
func (w *WAVStream) SetFrameSize(n int) {
	if n > 0 {
		w.frameSize = n
	}
}

func (w *WAVStream) Open(onFrame func(frame []float32)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return fmt.Errorf("wav stream already open")
	}

	f, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.path, err)
	}

	dec, err := newPCMDecoder(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", w.path, err)
	}

	w.file = f
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	logger.Debugf("Replaying %s: %d Hz, %d channel(s), %d bit", w.path, dec.SampleRate, dec.NumChans, dec.BitDepth)
	go w.pump(dec, onFrame)
	return nil
}

func newPCMDecoder(f *os.File) (*wav.Decoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV encoding %d, only integer PCM is supported", dec.WavAudioFormat)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 || dec.BitDepth == 0 {
		return nil, fmt.Errorf("unsupported WAV format")
	}
	return dec, nil
}

func (w *WAVStream) pump(dec *wav.Decoder, onFrame func(frame []float32)) {
	defer close(w.done)

	chans := int(dec.NumChans)
	period := time.Duration(w.frameSize) * time.Second / time.Duration(dec.SampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := &audio.IntBuffer{
		Data:   make([]int, w.frameSize*chans),
		Format: &audio.Format{NumChannels: chans, SampleRate: int(dec.SampleRate)},
	}
	frame := make([]float32, w.frameSize)

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			logger.Error("Failed to read WAV samples", err)
			return
		}
		if n == 0 {
			if !w.loop {
				logger.Debugf("Reached end of %s", w.path)
				return
			}
			if dec, err = w.rewind(); err != nil {
				logger.Error("Failed to rewind WAV input", err)
				return
			}
			continue
		}

		onFrame(downmix(frame, buf.Data[:n], chans, int(dec.BitDepth)))
	}
}

func (w *WAVStream) rewind() (*wav.Decoder, error) {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return newPCMDecoder(w.file)
}

// downmix averages interleaved integer samples to mono and scales them to [-1, 1].
// 8-bit PCM is unsigned with silence at 128; wider depths are signed.
func downmix(dst []float32, samples []int, chans, bitDepth int) []float32 {
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	frames := len(samples) / chans
	dst = dst[:frames]
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < chans; c++ {
			sum += samples[i*chans+c] - offset
		}
		dst[i] = float32(float64(sum) / float64(chans) / scale)
	}
	return dst
}

// Close stops the replay and closes the file. Closing twice is a no-op.
func (w *WAVStream) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	close(w.stop)
	<-w.done

	err := w.file.Close()
	w.file = nil
	return err
}
