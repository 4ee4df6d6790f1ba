// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Brings decoded speech to the output device rate before scheduling
package resample

import "github.com/greetcast/greetcast-go/pkg/audio"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts input samples to output sample rate using linear interpolation
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate
func (r *Resampler) Resample(input []float32, output []float32) int {
	if len(input) == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0

	for outIdx < outputFrames {
		inputIdx := int(r.position)

		// Consumed all input
		if inputIdx >= inputFrames-1 {
			break
		}

		frac := float32(r.position - float64(inputIdx))

		for ch := 0; ch < r.channels; ch++ {
			sample1 := input[inputIdx*r.channels+ch]
			sample2 := input[(inputIdx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = sample1*(1-frac) + sample2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Keep the fractional part for the next chunk
	r.position -= float64(int(r.position))

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}

// Buffer converts a whole playback buffer to outputRate. The result keeps the
// buffer's duration; the trailing frames that interpolation cannot reach
// repeat the final input sample.
func Buffer(buf audio.Buffer, outputRate int) audio.Buffer {
	if buf.Format.SampleRate == outputRate || buf.Frames() == 0 {
		return buf
	}

	channels := buf.Format.Channels
	outFrames := int(int64(buf.Frames()) * int64(outputRate) / int64(buf.Format.SampleRate))
	out := make([]float32, outFrames*channels)

	r := New(buf.Format.SampleRate, outputRate, channels)
	input := buf.Interleaved()
	n := r.Resample(input, out)

	last := input[len(input)-channels:]
	for i := n; i < len(out); i++ {
		out[i] = last[i%channels]
	}

	result := audio.NewBuffer(audio.Format{SampleRate: outputRate, Channels: channels}, outFrames)
	for i := 0; i < outFrames; i++ {
		for ch := 0; ch < channels; ch++ {
			result.Samples[ch][i] = out[i*channels+ch]
		}
	}
	return result
}
