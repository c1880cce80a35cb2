package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	err := Classify(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTimeout)

	err = Classify(fmt.Errorf("dial: %w", timeoutError{}))
	assert.ErrorIs(t, err, ErrTimeout)

	err = Classify(errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}
