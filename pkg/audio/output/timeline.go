// ABOUTME: Sample-accurate timeline feeding a single continuous PCM stream
// ABOUTME: Places scheduled buffers at frame positions and renders them as PCM16LE
package output

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio"
)

// timeline is read by one long-lived player. Its clock is the number of
// frames handed to that player, so buffers placed back to back are joined
// without a gap regardless of goroutine scheduling.
type timeline struct {
	format audio.Format

	mu      sync.Mutex
	pos     int64 // frames rendered so far
	lastEnd int64
	gain    float64
	voices  []*timelineVoice
	mix     []float32
}

type timelineVoice struct {
	tl      *timeline
	start   int64
	samples []float32 // interleaved
	frames  int64
	done    func()
}

func newTimeline(format audio.Format) *timeline {
	return &timeline{format: format, gain: 1}
}

// now returns the render position as a duration
func (t *timeline) now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frameTime(t.pos)
}

func (t *timeline) frameTime(frame int64) time.Duration {
	return time.Duration(frame) * time.Second / time.Duration(t.format.SampleRate)
}

func (t *timeline) timeFrame(at time.Duration) int64 {
	rate := int64(t.format.SampleRate)
	return (int64(at)*rate + int64(time.Second)/2) / int64(time.Second)
}

// place schedules interleaved samples to start at device time at
func (t *timeline) place(buf audio.Buffer, at time.Duration, done func()) *timelineVoice {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := t.timeFrame(at)
	// Rounding of durations can leave a one-frame seam between buffers
	// meant to be contiguous
	if d := start - t.lastEnd; d >= -1 && d <= 1 {
		start = t.lastEnd
	}
	if start < t.pos {
		start = t.pos
	}

	v := &timelineVoice{
		tl:      t,
		start:   start,
		samples: buf.Interleaved(),
		frames:  int64(buf.Frames()),
		done:    done,
	}
	t.voices = append(t.voices, v)
	if end := start + v.frames; end > t.lastEnd {
		t.lastEnd = end
	}
	return v
}

// remove drops a voice; its pending samples are never rendered
func (t *timeline) remove(v *timelineVoice) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, candidate := range t.voices {
		if candidate == v {
			t.voices = append(t.voices[:i], t.voices[i+1:]...)
			if len(t.voices) == 0 {
				t.lastEnd = t.pos
			}
			return true
		}
	}
	return false
}

func (t *timeline) setGain(gain float64) {
	t.mu.Lock()
	t.gain = gain
	t.mu.Unlock()
}

// Read renders the next whole frames that fit in p. Silence fills any span
// without a voice, so the stream never ends.
func (t *timeline) Read(p []byte) (int, error) {
	channels := t.format.Channels
	frames := int64(len(p) / (2 * channels))
	if frames == 0 {
		return 0, nil
	}

	t.mu.Lock()
	n := int(frames) * channels
	if cap(t.mix) < n {
		t.mix = make([]float32, n)
	}
	mix := t.mix[:n]
	for i := range mix {
		mix[i] = 0
	}

	from, to := t.pos, t.pos+frames
	var finished []*timelineVoice
	kept := t.voices[:0]
	for _, v := range t.voices {
		lo, hi := max(from, v.start), min(to, v.start+v.frames)
		for f := lo; f < hi; f++ {
			src := (f - v.start) * int64(channels)
			dst := (f - from) * int64(channels)
			for ch := int64(0); ch < int64(channels); ch++ {
				mix[dst+ch] += v.samples[src+ch]
			}
		}
		if v.start+v.frames <= to {
			finished = append(finished, v)
		} else {
			kept = append(kept, v)
		}
	}
	for i := len(kept); i < len(t.voices); i++ {
		t.voices[i] = nil
	}
	t.voices = kept
	t.pos = to
	if len(t.voices) == 0 && t.lastEnd < t.pos {
		t.lastEnd = t.pos
	}

	gain := float32(t.gain)
	for i, s := range mix {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(audio.SampleToInt16(s*gain)))
	}
	t.mu.Unlock()

	// done may re-enter the scheduler; keep it off the render path
	for _, v := range finished {
		if v.done != nil {
			go v.done()
		}
	}

	return n * 2, nil
}
