package pipeline

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// guard runs fn and converts a panic into an error so that one target can
// never take down its batch.
func guard(logger *zap.Logger, what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic",
				zap.String("operation", what),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%s panicked: %v", what, r)
		}
	}()
	return fn()
}
