package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrMissingToken = errors.New("login response carried no access token")
)
