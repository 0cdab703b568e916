package engine

import "github.com/orionlabs/sensing-core/signature"

const descriptorBins = 8

// extractDescriptors builds the four descriptor vectors Lane 2 matches
// against the signature bank from a resized BGR24 buffer. The structural
// vector is a coarse luminance histogram (scene layout changes shift its
// mass); the semantic vector is a per-channel mean (cheap stand-in for
// "what's in frame" absent a real feature extractor, see DESIGN.md); the
// context vector folds in the crack score and sparsity; the motion vector
// is left to a single scalar since Lane 2 never sees two consecutive
// frames.
func extractDescriptors(buf []byte, crackScore, sparsity float32) signature.Descriptors {
	hist := make([]float32, descriptorBins)
	var sumB, sumG, sumR float64
	n := len(buf) / 3
	for i := 0; i < n; i++ {
		b, g, r := buf[i*3+0], buf[i*3+1], buf[i*3+2]
		sumB += float64(b)
		sumG += float64(g)
		sumR += float64(r)
		luma := (54*int(r) + 183*int(g) + 19*int(b)) >> 8
		bin := luma * descriptorBins / 256
		if bin >= descriptorBins {
			bin = descriptorBins - 1
		}
		hist[bin]++
	}
	if n > 0 {
		for i := range hist {
			hist[i] /= float32(n)
		}
	}

	var meanB, meanG, meanR float32
	if n > 0 {
		meanB = float32(sumB / float64(n) / 255.0)
		meanG = float32(sumG / float64(n) / 255.0)
		meanR = float32(sumR / float64(n) / 255.0)
	}

	return signature.Descriptors{
		Structural: hist,
		Semantic:   []float32{meanB, meanG, meanR},
		Context:    []float32{crackScore, sparsity},
		Motion:     []float32{crackScore},
	}
}
