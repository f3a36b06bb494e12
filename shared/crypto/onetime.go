package crypto

import (
	"time"

	"github.com/crmportal/crmportal/shared/utils"
)

const oneTimeTokenBytes = 32

// OneTimeToken is emailed as Token and stored as Hash.
type OneTimeToken struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
}

type OneTimeGenerator struct {
	ttl time.Duration
	now func() time.Time
}

func NewOneTimeGenerator(ttl time.Duration) *OneTimeGenerator {
	return &OneTimeGenerator{ttl: ttl, now: time.Now}
}

// WithClock replaces time.Now.
func (g *OneTimeGenerator) WithClock(now func() time.Time) *OneTimeGenerator {
	g.now = now
	return g
}

func (g *OneTimeGenerator) Generate() (OneTimeToken, error) {
	token, err := utils.RandomHex(oneTimeTokenBytes)
	if err != nil {
		return OneTimeToken{}, err
	}
	return OneTimeToken{
		Token:     token,
		Hash:      HashToken(token),
		ExpiresAt: g.now().Add(g.ttl),
	}, nil
}

func HashToken(token string) string {
	return utils.HashSHA256(token)
}
