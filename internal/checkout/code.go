package checkout

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

// Order codes skip ambiguous glyphs (0/O, 1/I/L) so support staff can
// read them back over the phone.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator mints short public order codes.
type CodeGenerator interface {
	Next() string
}

type codeGenerator struct {
	prefix string
	gen    func() string
}

// NewCodeGenerator builds a generator producing prefix + length random
// characters from the restricted alphabet.
func NewCodeGenerator(prefix string, length int) (CodeGenerator, error) {
	if length < 4 {
		return nil, fmt.Errorf("order code length %d too short", length)
	}
	gen, err := nanoid.CustomASCII(codeAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("building code generator: %w", err)
	}
	return &codeGenerator{prefix: prefix, gen: gen}, nil
}

func (c *codeGenerator) Next() string {
	return c.prefix + c.gen()
}
