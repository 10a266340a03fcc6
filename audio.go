package holysaw

type (
	// AudioBuffer is a mono buffer of samples at SampleRate. Values are
	// expected in [-1, 1] but are not clamped until they are converted to
	// integers.
	AudioBuffer []float32

	// AudioContext plays whole buffers. Play returns immediately; the returned
	// CloserWaiter can be used to wait for the playback to finish, or to stop
	// it early.
	AudioContext interface {
		Play(buffer AudioBuffer) CloserWaiter
		Close() error
	}

	CloserWaiter interface {
		Close() error
		Wait()
	}
)

// DurationMs returns the length of the buffer in milliseconds.
func (b AudioBuffer) DurationMs() float64 {
	return float64(len(b)) / SamplesPerMs
}
