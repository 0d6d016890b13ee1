package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"telegram-insight-agent/internal/domain/ports/adapter"
)

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

// countTokens uses the model's BPE when tiktoken knows it, cl100k_base otherwise,
// and falls back to a 4-bytes-per-token guess when no encoding can be loaded.
var countTokens = func(model, text string) int {
	if enc := encodingFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

func encodingFor(model string) *tiktoken.Tiktoken {
	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encCache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		enc = nil
	}
	encCache[model] = enc
	return enc
}

// estimateUsage fills token counts for providers that did not report usage.
func estimateUsage(model, input, output string) adapter.Usage {
	in := countTokens(model, input)
	out := countTokens(model, output)
	return adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}
