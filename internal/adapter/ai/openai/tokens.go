package openai

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// tokenCounter caps prompt text at a token budget using the model's
// tokenizer. Encodings are cached; unknown models fall back to cl100k_base,
// which covers GPT-3.5/4 and is a fair approximation for the rest.
type tokenCounter struct {
	mu    sync.Mutex
	cache map[string]*tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	return &tokenCounter{cache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *tokenCounter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}
	c.cache[model] = enc
	return enc
}

// Truncate returns text cut to at most budget tokens. A non-positive budget
// or an unavailable encoding leaves the text untouched.
func (c *tokenCounter) Truncate(text, model string, budget int) string {
	if budget <= 0 || text == "" {
		return text
	}
	enc := c.encoding(model)
	if enc == nil {
		// Crude fallback: roughly 4 chars per token.
		if max := budget * 4; len(text) > max {
			return strings.ToValidUTF8(text[:max], "")
		}
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}
