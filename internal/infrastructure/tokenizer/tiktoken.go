package tokenizer

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Counter estimates token counts with a tiktoken encoding. The encoding is
// loaded lazily on first use; if loading fails the counter falls back to a
// rune-based heuristic so budgeting never breaks the request path.
type Counter struct {
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = defaultEncoding
	}
	return &Counter{encoding: encoding}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = fmt.Errorf("init tiktoken encoding %s: %w", c.encoding, err)
			return
		}
		c.enc = enc
	})

	if c.enc == nil {
		// Roughly four characters per token for English text.
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
