package provider

// DefaultModel is used when a request does not name one.
const DefaultModel = "gpt-4o"

// ModelInfo describes one supported model in the static catalog.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

var catalog = []ModelInfo{
	{ID: "gpt-4o", Name: "GPT-4o", Description: "Latest GPT-4 model with text and image support", Provider: "openai"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Description: "Lightweight GPT-4o, faster and cheaper", Provider: "openai"},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Description: "Improved GPT-4 with a longer context", Provider: "openai"},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Description: "Classic GPT-3.5, fast and economical", Provider: "openai"},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Google's fast multimodal model", Provider: "gemini"},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Description: "Anthropic's balanced multimodal model", Provider: "claude"},
}

// Catalog returns the supported model list.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog entry by model id.
func Lookup(id string) (ModelInfo, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
