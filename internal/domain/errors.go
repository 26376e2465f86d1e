package domain

import "errors"

var (
	ErrMessageNotFound     = errors.New("message not found")
	ErrEmptyBody           = errors.New("message body is empty")
	ErrAuthorNotRegistered = errors.New("author is not registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
)
