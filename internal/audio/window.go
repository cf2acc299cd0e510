package audio

import "math"

// RollingWindow keeps the most recent volume samples, evicting the oldest
// once capacity is reached.
type RollingWindow struct {
	buf  []float64
	head int // index of the oldest sample
	size int
}

func NewRollingWindow(capacity int) *RollingWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingWindow{buf: make([]float64, capacity)}
}

// Push appends v, dropping the oldest sample when full
func (w *RollingWindow) Push(v float64) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
}

// Average is recomputed from the current contents; an empty window averages 0.
func (w *RollingWindow) Average() float64 {
	if w.size == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.size; i++ {
		sum += w.buf[(w.head+i)%len(w.buf)]
	}
	return sum / float64(w.size)
}

func (w *RollingWindow) Len() int { return w.size }

func (w *RollingWindow) Cap() int { return len(w.buf) }

// Samples returns the contents oldest first
func (w *RollingWindow) Samples() []float64 {
	out := make([]float64, w.size)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// RMS returns sqrt(mean(x²)) of a frame
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
