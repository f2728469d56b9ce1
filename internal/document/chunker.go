package document

import (
	"errors"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
)

// ErrInvalidChunking is returned by NewChunker for a non-positive size or an
// overlap outside [0, size).
var ErrInvalidChunking = errors.New("document: invalid chunk size or overlap")

// Chunk is a contiguous piece of the document.
type Chunk struct {
	// Index is the chunk's position in document order.
	Index int
	Text  string
	// SourceOffset is the byte offset of Text in the extracted document,
	// or -1 when the splitter rewrote the piece (for example by joining
	// words across collapsed whitespace) so that it is not a literal
	// substring of the document.
	SourceOffset int
}

// Chunker splits text recursively on paragraph, line and word boundaries
// into chunks of at most the configured size, with up to the configured
// overlap shared between neighbours.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunking
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// Split returns the chunks of text in document order. Text that yields no
// non-blank chunk is a data error.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	const op = "document.Split"

	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindData, op, err, "document could not be split")
	}

	chunks := make([]Chunk, 0, len(parts))
	searchFrom := 0
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		var offset int
		offset, searchFrom = locate(text, p, searchFrom)
		chunks = append(chunks, Chunk{
			Index:        len(chunks),
			Text:         p,
			SourceOffset: offset,
		})
	}

	if len(chunks) == 0 {
		return nil, apperrors.New(apperrors.KindData, op, "document produced no chunks")
	}
	return chunks, nil
}

// locate finds part in text at or after from. It returns the part's
// offset, or -1 if it does not occur, and where the next search starts.
// Overlapping chunks start strictly after one another, so a match moves
// the next search one byte past its start.
func locate(text, part string, from int) (offset, next int) {
	if i := strings.Index(text[from:], part); i >= 0 {
		return from + i, from + i + 1
	}
	return -1, from
}
