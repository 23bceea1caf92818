package export

import (
	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding is the fixed tokenizer used for metering. cl100k_base is
// deterministic and model-independent, so re-running the same export always
// yields the same count.
const tokenEncoding = "cl100k_base"

// TokenMeter counts subword tokens over the exact bytes of each emitted CSV
// line and compares the running total to a warning threshold. It is only
// ever driven by the CSV renderer, in line emission order.
type TokenMeter struct {
	enc       *tiktoken.Tiktoken
	threshold int
	total     int
}

// NewTokenMeter loads the tokenizer. threshold must be positive; a zero
// threshold means metering is disabled and no meter should be constructed.
func NewTokenMeter(threshold int) (*TokenMeter, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, Errorf(ErrFormat, "error loading %s tokenizer: %w", tokenEncoding, err)
	}
	return &TokenMeter{enc: enc, threshold: threshold}, nil
}

// AddLine tokenizes one emitted line, byte-for-byte as written to the file.
func (m *TokenMeter) AddLine(line []byte) {
	m.total += len(m.enc.Encode(string(line), nil, nil))
}

// Total returns the accumulated token count.
func (m *TokenMeter) Total() int {
	return m.total
}

// Exceeded reports whether the total reached the warning threshold. The
// boundary is inclusive: a total of exactly the threshold warns.
func (m *TokenMeter) Exceeded() bool {
	return m.total >= m.threshold
}
