package model

const (
	LevelMin     = 0
	LevelMax     = 4
	LevelDefault = 2
)

// AIConfig holds per-merchant generation tunables. Levels range 0-4.
type AIConfig struct {
	Model               string  `json:"model"`
	CreativityLevel     int     `json:"creativity_level"`
	FormalityLevel      int     `json:"formality_level"`
	MaxReplyLengthLevel int     `json:"max_reply_length_level"`
	CustomSystemPrompt  *string `json:"custom_system_prompt,omitempty"`
}

// DefaultAIConfig is used when a merchant has no configuration row.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		CreativityLevel:     LevelDefault,
		FormalityLevel:      LevelDefault,
		MaxReplyLengthLevel: LevelDefault,
	}
}

// ClampLevel pins out-of-range levels to the nearest bound.
func ClampLevel(level int) int {
	if level < LevelMin {
		return LevelMin
	}
	if level > LevelMax {
		return LevelMax
	}
	return level
}
