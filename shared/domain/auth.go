package domain

import "time"

type TokenClass string

const (
	AccessToken  TokenClass = "access"
	RefreshToken TokenClass = "refresh"
)

type Token struct {
	Value     string
	Id        TokenId
	ExpiresAt time.Time
}

type TokenPair struct {
	Access  Token
	Refresh Token
}

type Claims struct {
	UserId    UserId
	Email     Email
	Class     TokenClass
	TokenId   TokenId
	ExpiresAt time.Time
}

type LoginResult struct {
	Tokens TokenPair
	User   UserSummary
}

// Refresh is zero when rotation is off.
type RefreshResult struct {
	Access  Token
	Refresh Token
}
