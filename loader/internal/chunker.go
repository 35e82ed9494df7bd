package internal

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"coursebot/types"
)

const DefaultChunkSize = 500

// ChunkOptions bounds chunk length in characters.
//
// Overlap is accepted for configuration compatibility but is reserved:
// chunk boundaries are hard cuts between paragraphs and no text is repeated
// across chunks.
type ChunkOptions struct {
	MaxChars int
	Overlap  int
}

const paragraphSep = "\n\n"

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// Chunk splits each page on blank lines and packs whole paragraphs into
// chunks of at most MaxChars characters. A paragraph longer than MaxChars
// becomes a chunk of its own. Indexes run across the whole material in page
// order.
func Chunk(materialID int64, pages []types.PageText, opts ChunkOptions) []types.Chunk {
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	var chunks []types.Chunk
	for _, page := range pages {
		var (
			buf    strings.Builder
			bufLen int
		)
		flush := func() {
			text := strings.TrimSpace(buf.String())
			if text != "" {
				chunks = append(chunks, types.Chunk{
					MaterialID: materialID,
					Index:      len(chunks),
					Page:       page.Page,
					Text:       text,
				})
			}
			buf.Reset()
			bufLen = 0
		}

		text := strings.ReplaceAll(page.Text, "\r\n", "\n")
		for _, para := range blankLine.Split(text, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			paraLen := utf8.RuneCountInString(para)

			if bufLen > 0 && bufLen+len(paragraphSep)+paraLen > maxChars {
				flush()
			}
			if bufLen > 0 {
				buf.WriteString(paragraphSep)
				bufLen += len(paragraphSep)
			}
			buf.WriteString(para)
			bufLen += paraLen
		}
		flush()
	}
	return chunks
}
