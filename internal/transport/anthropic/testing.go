package anthropic

import "go.uber.org/zap"

// NewGeneratorForTest creates a Generator over an existing messages client.
func NewGeneratorForTest(m Messager, model string) *Generator {
	return &Generator{
		messages: m,
		model:    model,
		provider: "anthropic",
		logger:   zap.NewNop(),
	}
}
