package validator

import (
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

// Validator checks inputs before a strategy is allowed to act on them.
type Validator interface {
	ValidateAuthInfo(auth *types.AuthInfo) error
	ValidateBuildTarget(target types.BuildTarget, checkoutPath string) error
}
