package brain

import (
	"autoreply.app/relay/common/llm"
	"autoreply.app/relay/internal/model"
)

// Indexed by level 0-4.
var (
	creativityTemperatures = [...]float64{0.0, 0.3, 0.6, 0.8, 1.0}
	replyLengthTokens      = [...]int{60, 120, 200, 350, 500}
	formalityHints         = [...]string{
		"very formal: complete sentences, polite forms of address, no slang or emoji",
		"formal: courteous and professional, minimal emoji",
		"balanced: friendly and professional",
		"casual: relaxed and conversational",
		"very casual: chatty and warm, emoji are welcome",
	}
)

// GenerationSettings is resolved once per run from the merchant's AIConfig and passed
// explicitly to every generation call of that run.
type GenerationSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	ToneHint    string
}

func ResolveSettings(cfg *model.AIConfig) GenerationSettings {
	c := model.DefaultAIConfig()
	if cfg != nil {
		c = *cfg
	}

	modelName := c.Model
	if modelName == "" {
		modelName = llm.DefaultModel
	}

	return GenerationSettings{
		Model:       modelName,
		Temperature: creativityTemperatures[model.ClampLevel(c.CreativityLevel)],
		MaxTokens:   replyLengthTokens[model.ClampLevel(c.MaxReplyLengthLevel)],
		ToneHint:    formalityHints[model.ClampLevel(c.FormalityLevel)],
	}
}

func (s GenerationSettings) request(system, user string) llm.GenerateRequest {
	return llm.GenerateRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        s.Model,
		Temperature:  llm.Temp(s.Temperature),
		MaxTokens:    s.MaxTokens,
	}
}
