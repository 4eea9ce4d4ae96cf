package engine

// LoopConfig holds the iteration thresholds of the agent loop.
type LoopConfig struct {
	MaxIterations      int // Hard bound on turns before the session fails
	CompressAfter      int // Compress history once iteration exceeds this
	CompressMinLen     int // ...and history is longer than this
	SynthesizeAfter    int // Inject the wrap-up directive once iteration exceeds this
	EscalateAfter      int // Switch to the semantic digest once iteration exceeds this
	MaxOutputTokens    int
	Temperature        float32
}

// DefaultLoopConfig returns the default loop thresholds.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations:   100,
		CompressAfter:   2,
		CompressMinLen:  5,
		SynthesizeAfter: 6,
		EscalateAfter:   8,
		MaxOutputTokens: 4096,
		Temperature:     0.1,
	}
}
