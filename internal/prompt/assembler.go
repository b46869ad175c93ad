package prompt

import (
	"github.com/cloudwego/eino/schema"

	"chatgate/internal/models"
)

// systemInstruction opens every assembled conversation.
const systemInstruction = "You are a helpful AI assistant that can answer questions and analyze images."

// imageMIME is the fixed attachment type; uploads are re-expressed as jpeg
// data URIs regardless of source extension.
const imageMIME = "image/jpeg"

// Assemble turns the stored history plus the new user turn into the ordered
// message sequence for the model provider: one system message, one message
// per history turn in original order, then the new turn. The full history is
// resent on every call; there is no windowing.
func Assemble(history []models.Turn, text, imageB64 string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemInstruction))

	for _, turn := range history {
		switch {
		case turn.Role == models.RoleUser && turn.Image != "":
			messages = append(messages, imageMessage(turn.Content, turn.Image))
		case turn.Role == models.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		default:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}

	if imageB64 != "" {
		messages = append(messages, imageMessage(text, imageB64))
	} else {
		messages = append(messages, schema.UserMessage(text))
	}
	return messages
}

// imageMessage builds the dual-part user message: a text part and the image
// as a data URI.
func imageMessage(text, imageB64 string) *schema.Message {
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type: schema.ChatMessagePartTypeText,
				Text: text,
			},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL: DataURI(imageB64),
				},
			},
		},
	}
}

// DataURI wraps base64 image bytes in the provider-facing data URI form.
func DataURI(imageB64 string) string {
	return "data:" + imageMIME + ";base64," + imageB64
}
