// Package chunk splits text into fixed-size pieces for embedding.
//
// Splitting is deterministic and lossless. Concatenating the chunks
// in order reproduces the input byte for byte.
package chunk

// DefaultSize is the chunk length used when no explicit size is given.
const DefaultSize = 800

// Split cuts text into consecutive chunks of at most size characters.
// The final chunk carries the remainder and may be shorter. Empty text
// yields no chunks. A non-positive size falls back to DefaultSize.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if text == "" {
		return nil
	}

	chunks := make([]string, 0, (len(text)+size-1)/size)
	for len(text) > size {
		chunks = append(chunks, text[:size])
		text = text[size:]
	}
	return append(chunks, text)
}
