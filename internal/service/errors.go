package service

import "errors"

// Errors returned by the services. Handlers map them to status codes.
var (
	ErrNotFound           = errors.New("item does not exist or is inaccessible")
	ErrForbidden          = errors.New("you do not have permissions to access this resource")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username is already taken")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidClient      = errors.New("invalid client_id or redirect_uri")
	ErrInvalidInput       = errors.New("invalid input")
)
