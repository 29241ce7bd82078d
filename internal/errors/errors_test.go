package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelClassification(t *testing.T) {
	notFound := NewNotFound("notification %s", "n1")
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsInternal(notFound))
	assert.Equal(t, "notification n1: not found", notFound.Error())

	assert.True(t, IsUnauthorized(NewUnauthorized("no token")))
	assert.True(t, IsInvalid(NewInvalid("bad channel %q", "sms")))
	assert.True(t, IsUnavailable(NewUnavailable("directory timeout")))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewNotFound("row gone"))
	assert.True(t, IsNotFound(wrapped))
}

func TestInternalIsTheFallback(t *testing.T) {
	assert.True(t, IsInternal(NewInternal("db exploded: %v", "conn reset")))
	assert.True(t, IsInternal(fmt.Errorf("some plain error")))
	assert.False(t, IsInternal(nil))
}
