// Package classifier maps free-text reply content to a sentiment label.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"coldreach/internal/llm"
	"coldreach/internal/models"

	"github.com/rs/zerolog"
)

const systemPrompt = "You are a professional email assistant."

const promptTemplate = `You are a sales assistant. Classify the following email reply into one of the following categories:
- Positive (interested or wants to connect)
- Neutral (asks for more info or ambiguous)
- Negative (not interested, unsubscribe, or rejection)

Reply:
%s

Just return: Positive, Neutral, or Negative.`

// Classifier is the reply-sentiment adapter.
type Classifier struct {
	chatter llm.Chatter
	logger  zerolog.Logger
}

// New creates a classifier over a completion client.
func New(chatter llm.Chatter, logger zerolog.Logger) *Classifier {
	return &Classifier{chatter: chatter, logger: logger}
}

// Classify returns the sentiment of one reply. Any error or unexpected
// model output maps to SentimentUnknown; a misclassification must never
// abort the analysis stage.
func (c *Classifier) Classify(ctx context.Context, replyText string) string {
	content, err := c.chatter.Chat(ctx, systemPrompt, fmt.Sprintf(promptTemplate, replyText), 100, 0.3)
	if err != nil {
		c.logger.Error().Err(err).Msg("Reply classification failed")
		return models.SentimentUnknown
	}

	return normalize(content)
}

// normalize extracts one of the known labels from the model output.
// Models occasionally wrap the label in extra prose.
func normalize(content string) string {
	lower := strings.ToLower(content)
	for _, label := range []string{
		models.SentimentPositive,
		models.SentimentNegative,
		models.SentimentNeutral,
	} {
		if strings.Contains(lower, strings.ToLower(label)) {
			return label
		}
	}
	return models.SentimentUnknown
}
