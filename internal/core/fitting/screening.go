package fitting

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Screener checks an uploaded photo before it is sent to the try-on
// provider: the image must show a single person so generation has something
// to dress. Screening is advisory and optional; without an API key every
// photo passes.
type Screener struct {
	client *openai.Client
}

// NewScreener creates a new photo screener. Returns nil when apiKey is empty.
func NewScreener(apiKey string) *Screener {
	if apiKey == "" {
		return nil
	}
	return &Screener{client: openai.NewClient(apiKey)}
}

// Check returns a non-empty rejection reason when the photo is unusable.
func (s *Screener) Check(ctx context.Context, photo []byte) (string, error) {
	mime := http.DetectContentType(photo[:min(len(photo), 512)])
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(photo)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Does this photo show exactly one person, mostly visible, suitable for a virtual clothing try-on? Answer OK if yes. Otherwise answer REJECT followed by a short reason.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: uri, Detail: openai.ImageURLDetailLow},
					},
				},
			},
		},
		MaxTokens: 50,
	})
	if err != nil {
		return "", fmt.Errorf("screening request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("screening returned no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if strings.HasPrefix(answer, "OK") {
		return "", nil
	}
	return strings.TrimSpace(strings.TrimPrefix(answer, "REJECT")), nil
}
