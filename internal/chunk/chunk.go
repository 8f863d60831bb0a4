// Package chunk slices extracted text into ordered, overlapping windows.
package chunk

// Params bounds the sliding window.
type Params struct {
	// ChunkSize is the nominal window length in characters.
	ChunkSize int
	// Overlap is how many characters consecutive chunks share.
	Overlap int
	// MinChunkSize drops fragments shorter than this.
	MinChunkSize int
}

// DefaultParams mirrors the ingestion defaults.
func DefaultParams() Params {
	return Params{ChunkSize: 1000, Overlap: 200, MinChunkSize: 100}
}

func (p Params) sanitize() Params {
	if p.ChunkSize <= 0 {
		p.ChunkSize = 1000
	}
	if p.Overlap < 0 {
		p.Overlap = 0
	}
	if p.Overlap >= p.ChunkSize {
		p.Overlap = p.ChunkSize - 1
	}
	if p.MinChunkSize < 0 {
		p.MinChunkSize = 0
	}
	return p
}

// Chunk is one window of the source text. Offsets are rune positions
// within the text passed to Split.
type Chunk struct {
	Index     int
	Content   string
	StartChar int
	EndChar   int
}

// boundarySearchWindow is how far back from the nominal cut a nicer
// boundary may be, in characters.
const boundarySearchWindow = 100

// Delimiter preference when snapping a window boundary.
const (
	rankNone = iota
	rankNewline
	rankSentence
	rankParagraph
)

// Split advances a sliding window over text. When a window ends
// mid-document the boundary snaps back to the best delimiter within the
// last boundarySearchWindow characters: a paragraph break beats a
// sentence terminator beats a bare newline. With no delimiter in reach
// the cut is hard. The next window starts Overlap characters before the
// current end, clamped so it never regresses behind the previous start.
// Chunks shorter than MinChunkSize are dropped; surviving chunks carry
// consecutive monotonic indices.
func Split(text string, p Params) []Chunk {
	p = p.sanitize()
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []Chunk
	index := 0
	start := 0
	for start < n {
		end := start + p.ChunkSize
		if end >= n {
			end = n
		} else {
			end = snapBoundary(runes, start, end)
		}

		if end-start >= p.MinChunkSize {
			chunks = append(chunks, Chunk{
				Index:     index,
				Content:   string(runes[start:end]),
				StartChar: start,
				EndChar:   end,
			})
			index++
		}

		if end >= n {
			break
		}
		next := end - p.Overlap
		if next <= start {
			// Snapped window shorter than the overlap; advance without
			// overlap rather than looping.
			next = end
		}
		start = next
	}
	return chunks
}

// snapBoundary searches backward from end for the best delimiter, returning
// the position just after it, or end unchanged when none is in reach.
func snapBoundary(runes []rune, start, end int) int {
	limit := end - boundarySearchWindow
	if limit < start+1 {
		limit = start + 1
	}

	bestRank := rankNone
	bestPos := end
	for j := end - 1; j >= limit; j-- {
		rank := rankNone
		switch {
		case runes[j] == '\n' && j > start && runes[j-1] == '\n':
			rank = rankParagraph
		case isSentenceEnd(runes, j, end):
			rank = rankSentence
		case runes[j] == '\n':
			rank = rankNewline
		}
		// Scanning backward, the first hit at a rank is its latest
		// occurrence in the window.
		if rank > bestRank {
			bestRank = rank
			bestPos = j + 1
			if bestRank == rankParagraph {
				return bestPos
			}
		}
	}
	return bestPos
}

func isSentenceEnd(runes []rune, j, end int) bool {
	switch runes[j] {
	case '.', '!', '?', '。', '！', '？':
	default:
		return false
	}
	if j+1 >= len(runes) || j+1 == end {
		return true
	}
	next := runes[j+1]
	return next == ' ' || next == '\t' || next == '\n'
}
