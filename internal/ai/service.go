package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"blogosphere/internal/models"
)

const (
	DefaultWordCount = 500
	MinWordCount     = 100
	MaxWordCount     = 2000
	MinSummaryInput  = 100
)

// Service builds prompts and opens upstream streams.
type Service struct {
	completer Completer
}

func NewService(completer Completer) *Service {
	return &Service{completer: completer}
}

// Generate streams a markdown blog post about topic. A zero wordCount means
// DefaultWordCount.
func (s *Service) Generate(ctx context.Context, topic string, wordCount int) (Stream, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, models.NewValidationError("Topic is required")
	}
	if wordCount == 0 {
		wordCount = DefaultWordCount
	}
	if wordCount < MinWordCount || wordCount > MaxWordCount {
		return nil, models.NewValidationError(fmt.Sprintf("Word count must be between %d and %d", MinWordCount, MaxWordCount))
	}

	stream, err := s.completer.Open(ctx, Request{
		Prompt:           generatePrompt(topic, wordCount),
		Temperature:      0.7,
		TopP:             0.9,
		FrequencyPenalty: 0.3,
		PresencePenalty:  0.3,
		MaxTokens:        4096,
	})
	if err != nil {
		return nil, models.NewUpstreamError("Failed to generate content. Please try again.", err)
	}
	return stream, nil
}

// Summarize streams a short summary of content.
func (s *Service) Summarize(ctx context.Context, content string) (Stream, error) {
	if strings.TrimSpace(content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) < MinSummaryInput {
		return nil, models.NewValidationError("Content is too short to summarize")
	}

	stream, err := s.completer.Open(ctx, Request{
		Prompt:      summarizePrompt(content),
		Temperature: 0.3,
		TopP:        0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, models.NewUpstreamError("Failed to summarize content. Please try again.", err)
	}
	return stream, nil
}

func generatePrompt(topic string, words int) string {
	return fmt.Sprintf(`Write a comprehensive blog post about %q.

Requirements:
- Target length: approximately %d words
- Use an engaging and informative tone
- Include an introduction, a main body with key points, and a conclusion
- Use Markdown formatting (headers, bold, lists)
- Keep it well structured and easy to read
- Include relevant examples or insights where appropriate

Write the blog post now:`, topic, words)
}

func summarizePrompt(content string) string {
	return `Provide a concise and clear summary of the following blog post content.

The summary should:
- Be significantly shorter than the original (aim for 3-5 sentences)
- Capture the main ideas and key points
- Be easy to understand
- Keep a professional tone

Content to summarize:
` + content + `

Write the summary now:`
}
