package domain

type (
	Email    = string
	Password = string
	UserId   = string
	TokenId  = string
)
