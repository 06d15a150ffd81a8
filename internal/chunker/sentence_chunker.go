// Package chunker splits long texts into overlapping sentence windows.
package chunker

import (
	"regexp"
	"strings"
)

// SentenceChunker splits text into sentence-based windows with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// overlap must leave room to advance
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
	}
}

// Sentences returns the trimmed, non-empty sentences of text.
func (c *SentenceChunker) Sentences(text string) []string {
	var out []string
	for _, s := range c.splitter.FindAllString(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" && strings.Trim(s, ".!?") != "" {
			out = append(out, s)
		}
	}
	return out
}

// Chunk returns the windows of text in order. Empty text yields nil.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := c.Sentences(text)
	if len(sentences) == 0 {
		return nil
	}
	var chunks []string
	i := 0
	for i < len(sentences) {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
