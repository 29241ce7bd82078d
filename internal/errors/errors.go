package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid input")
	ErrUnavailable  = errors.New("unavailable")
)

func NewInternal(format string, a ...interface{}) error {
	return fmt.Errorf("INTERNAL: "+format, a...)
}

func NewNotFound(format string, a ...interface{}) error {
	return fmt.Errorf(format+": %w", append(a, ErrNotFound)...)
}

func NewUnauthorized(format string, a ...interface{}) error {
	return fmt.Errorf(format+": %w", append(a, ErrUnauthorized)...)
}

func NewInvalid(format string, a ...interface{}) error {
	return fmt.Errorf(format+": %w", append(a, ErrInvalid)...)
}

func NewUnavailable(format string, a ...interface{}) error {
	return fmt.Errorf(format+": %w", append(a, ErrUnavailable)...)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func IsInternal(err error) bool {
	return err != nil && !IsNotFound(err) && !IsUnauthorized(err) && !IsInvalid(err) && !IsUnavailable(err)
}
