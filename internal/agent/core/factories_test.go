package core

import (
	"testing"

	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestNewImageDescriber(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.Nil(t, NewImageDescriber(config.VisionConfig{}, config.LLMConfig{APIKey: "sk"}, logger))
	assert.Nil(t, NewImageDescriber(config.VisionConfig{Enabled: true}, config.LLMConfig{}, logger))
	assert.NotNil(t, NewImageDescriber(config.VisionConfig{Enabled: true, Model: "gpt-4o-mini"}, config.LLMConfig{APIKey: "sk"}, logger))
	assert.NotNil(t, NewImageDescriber(config.VisionConfig{Enabled: true, APIKey: "vision-key"}, config.LLMConfig{}, logger))
}

func TestNewAttachmentParserWiresVision(t *testing.T) {
	cfg := &config.Config{}
	p := NewAttachmentParser(cfg, 100, nil)
	assert.Nil(t, p.Describer)
	assert.Equal(t, 100, p.MaxChars)

	cfg.LLM.APIKey = "sk"
	cfg.Tools.Vision = config.VisionConfig{Enabled: true, Prompt: "describe", MaxBytes: 1024}
	p = NewAttachmentParser(cfg, 0, nil)
	assert.NotNil(t, p.Describer)
	assert.Equal(t, "describe", p.Prompt)
	assert.Equal(t, int64(1024), p.MaxImageBytes)
}
