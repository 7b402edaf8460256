package chunker

import "strings"

// Line-window chunking parameters. The overlap is a fixed step of the
// operating mode, not a per-call option.
const (
	windowLines  = 40
	overlapLines = 10
)

// lineChunks splits src into fixed line windows with overlap. Used for
// supported languages without a grammar and as the degradation path when a
// parse fails.
func lineChunks(path, lang string, src []byte) []Chunk {
	text := string(src)
	lines := strings.Split(text, "\n")
	// A trailing newline produces one empty trailing element; drop it so the
	// final line number matches what an editor shows.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}

	var chunks []Chunk
	for i := 0; i < len(lines); {
		end := i + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				FilePath:  path,
				StartLine: i + 1,
				EndLine:   end,
				Kind:      "window",
				Content:   content,
				Language:  lang,
			})
		}
		if end >= len(lines) {
			break
		}
		i += windowLines - overlapLines
	}
	return chunks
}
