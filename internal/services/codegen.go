package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"deals-system/internal/config"
)

// codeAlphabet excludes visually confusable characters (0/O, 1/I/L)
// so partner staff can read a code back over the phone without ambiguity.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const (
	defaultCodeLength     = 10
	defaultTokenBytes     = 32
	defaultMaxCodeRetries = 5
)

// CodeExistsFunc reports whether a coupon code was ever issued.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// CodeGenerator mints human-readable coupon codes and high-entropy
// redemption tokens. It only consumes randomness; persistence belongs
// to the coupon ledger.
type CodeGenerator struct {
	codeLength int
	tokenBytes int
	maxRetries int
}

// NewCodeGenerator creates a generator with config-driven sizes.
func NewCodeGenerator(cfg *config.CouponsConfig) *CodeGenerator {
	codeLength := defaultCodeLength
	tokenBytes := defaultTokenBytes
	maxRetries := defaultMaxCodeRetries

	if cfg != nil {
		if cfg.CodeLength > 0 {
			codeLength = cfg.CodeLength
		}
		if cfg.TokenBytes > 0 {
			tokenBytes = cfg.TokenBytes
		}
		if cfg.MaxCodeRetries > 0 {
			maxRetries = cfg.MaxCodeRetries
		}
	}

	return &CodeGenerator{
		codeLength: codeLength,
		tokenBytes: tokenBytes,
		maxRetries: maxRetries,
	}
}

// GenerateCode produces a collision-checked coupon code and a redemption
// token. Persistent collisions indicate an exhausted code space or broken
// randomness, so after maxRetries the error is returned as fatal rather
// than retrying forever.
func (g *CodeGenerator) GenerateCode(ctx context.Context, codeExists CodeExistsFunc) (code string, token string, err error) {
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		candidate, err := g.randomCode()
		if err != nil {
			return "", "", err
		}

		exists, err := codeExists(ctx, candidate)
		if err != nil {
			return "", "", fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if exists {
			continue
		}

		token, err := g.randomToken()
		if err != nil {
			return "", "", err
		}
		return candidate, token, nil
	}

	return "", "", fmt.Errorf("failed to generate unique coupon code after %d attempts", g.maxRetries)
}

func (g *CodeGenerator) randomCode() (string, error) {
	buf := make([]byte, g.codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func (g *CodeGenerator) randomToken() (string, error) {
	buf := make([]byte, g.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
