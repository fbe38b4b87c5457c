package relay

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any text and chunk size, concatenating the chunks reproduces the
// original text byte for byte, every chunk except possibly the last is
// exactly the chunk size, and no chunk is empty.
func TestChunksRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("chunks concatenate to the original text", prop.ForAll(
		func(text string, size int) bool {
			return strings.Join(Chunks(text, size), "") == text
		},
		gen.AnyString(),
		gen.IntRange(1, 256),
	))

	properties.Property("all chunks except the last are full-sized and none are empty", prop.ForAll(
		func(text string, size int) bool {
			chunks := Chunks(text, size)
			for i, c := range chunks {
				if len(c) == 0 {
					return false
				}
				if i < len(chunks)-1 && len(c) != size {
					return false
				}
				if len(c) > size {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
		gen.IntRange(1, 256),
	))

	properties.Property("empty text yields no chunks", prop.ForAll(
		func(size int) bool {
			return len(Chunks("", size)) == 0
		},
		gen.IntRange(1, 256),
	))

	properties.TestingRun(t)
}
