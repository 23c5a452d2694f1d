package pipeline

import (
	"fmt"
	"math"
	"strings"
)

// SentenceChunker creates a chunker that splits by sentences
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]string, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		sentences := splitSentences(text)
		if len(sentences) == 0 {
			return []string{}, nil
		}

		var chunks []string
		for start := 0; start < len(sentences); start += maxSentencesPerChunk {
			end := start + maxSentencesPerChunk
			if end > len(sentences) {
				end = len(sentences)
			}
			chunks = append(chunks, strings.Join(sentences[start:end], " "))
		}

		return chunks, nil
	}
}

// ParagraphChunker creates a chunker that splits on blank lines and packs
// paragraphs into chunks of at most maxChunkSize characters. A single
// oversized paragraph becomes its own chunk rather than being cut mid-sentence.
func ParagraphChunker(maxChunkSize int) ChunkFunc {
	return func(text string) ([]string, error) {
		if maxChunkSize <= 0 {
			return nil, fmt.Errorf("max chunk size must be positive")
		}

		var paragraphs []string
		for _, para := range strings.Split(text, "\n\n") {
			para = strings.TrimSpace(para)
			if para != "" {
				paragraphs = append(paragraphs, para)
			}
		}

		var chunks []string
		var current strings.Builder
		for _, para := range paragraphs {
			if current.Len() > 0 && current.Len()+len(para)+2 > maxChunkSize {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
		}

		return chunks, nil
	}
}

// SemanticChunker groups sentences using embeddings to identify natural
// boundaries. It breaks a chunk where the similarity between the running
// chunk and the next sentence drops below the threshold, or where the size
// limit would be exceeded.
func SemanticChunker(embed EmbedFunc, maxChunkSize int, similarityThreshold float32) ChunkFunc {
	return func(text string) ([]string, error) {
		if maxChunkSize <= 0 {
			return nil, fmt.Errorf("max chunk size must be positive")
		}

		sentences := splitSentences(text)
		if len(sentences) == 0 {
			return []string{}, nil
		}

		embeddings := make([][]float32, len(sentences))
		for i, sentence := range sentences {
			embedding, err := embed(sentence)
			if err != nil {
				return nil, fmt.Errorf("failed to embed sentence: %w", err)
			}
			embeddings[i] = embedding
		}

		var chunks []string
		var currentChunk []string
		var currentEmbeddings [][]float32
		var currentLength int

		for i, sentence := range sentences {
			if len(currentChunk) > 0 {
				// Average embedding of the running chunk against the next sentence
				avgEmbedding := make([]float32, len(currentEmbeddings[0]))
				for _, emb := range currentEmbeddings {
					for j := range emb {
						avgEmbedding[j] += emb[j]
					}
				}
				for j := range avgEmbedding {
					avgEmbedding[j] /= float32(len(currentEmbeddings))
				}

				similarity := cosineSimilarity(avgEmbedding, embeddings[i])
				if similarity < similarityThreshold || currentLength+len(sentence) > maxChunkSize {
					chunks = append(chunks, strings.Join(currentChunk, " "))
					currentChunk = nil
					currentEmbeddings = nil
					currentLength = 0
				}
			}

			currentChunk = append(currentChunk, sentence)
			currentEmbeddings = append(currentEmbeddings, embeddings[i])
			currentLength += len(sentence)
		}
		if len(currentChunk) > 0 {
			chunks = append(chunks, strings.Join(currentChunk, " "))
		}

		return chunks, nil
	}
}

// splitSentences breaks text at terminal punctuation followed by whitespace
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")

	var sentences []string
	for _, s := range strings.Split(text, "|") {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
