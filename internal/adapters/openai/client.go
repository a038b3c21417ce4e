package openai

import (
    "context"
    "encoding/base64"
    "errors"
    "fmt"
    "strings"

    openai "github.com/openai/openai-go/v2"
    "github.com/openai/openai-go/v2/option"
    "github.com/openai/openai-go/v2/shared"
    "github.com/rs/zerolog"

    "github.com/sagar-endluri/jira-rag-pipeline/internal/config"
)

type Client struct {
    key   string
    model string
    cli   openai.Client
    log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    model := cfg.OpenAIVisionModel
    if strings.TrimSpace(model) == "" { model = "gpt-4o" }
    cli := openai.NewClient(option.WithAPIKey(cfg.OpenAIKey))
    return &Client{ key: cfg.OpenAIKey, model: model, cli: cli, log: log }
}

// DescribeImage sends the image inline as a base64 data URL and returns the
// model's natural-language description, which stands in for extracted text.
func (c *Client) DescribeImage(ctx context.Context, data []byte, mime string) (string, error) {
    if strings.TrimSpace(c.key) == "" { return "", errors.New("openai: missing key") }
    if mime == "" { mime = "image/png" }
    dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
    c.log.Info().Str("model", c.model).Int("bytes", len(data)).Msg("openai DescribeImage call")
    params := openai.ChatCompletionNewParams{
        Model:     shared.ChatModel(c.model),
        MaxTokens: openai.Int(1000),
        Messages: []openai.ChatCompletionMessageParamUnion{
            openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
                openai.TextContentPart("Please describe the contents of this image."),
                openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{ URL: dataURL }),
            }),
        },
    }
    resp, err := c.cli.Chat.Completions.New(ctx, params)
    if err != nil { return "", err }
    if len(resp.Choices) == 0 { return "", errors.New("openai: no choices") }
    return resp.Choices[0].Message.Content, nil
}
