package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

type TargetValidator struct{}

func NewTargetValidator() *TargetValidator {
	return &TargetValidator{}
}

// ValidateAuthInfo accepts nil, meaning anonymous access.
func (v *TargetValidator) ValidateAuthInfo(auth *types.AuthInfo) error {
	if auth == nil {
		return nil
	}
	if strings.TrimSpace(auth.Username) == "" {
		return fmt.Errorf("%w: repository username is required", types.ErrValidation)
	}
	if strings.TrimSpace(auth.Password) == "" {
		return fmt.Errorf("%w: repository password is required", types.ErrValidation)
	}
	return nil
}

// ValidateBuildTarget requires a usable target name and a source directory
// that resolves inside the checkout.
func (v *TargetValidator) ValidateBuildTarget(target types.BuildTarget, checkoutPath string) error {
	name := strings.TrimSpace(target.Name)
	if name == "" {
		return fmt.Errorf("%w: build target name is required", types.ErrValidation)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: build target name %q cannot be used as a directory name", types.ErrValidation, target.Name)
	}

	if filepath.IsAbs(target.RelativePath) {
		return fmt.Errorf("%w: relative path %q must not be absolute", types.ErrValidation, target.RelativePath)
	}
	source := filepath.Join(checkoutPath, target.RelativePath)
	rel, err := filepath.Rel(checkoutPath, source)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: relative path %q escapes the checkout", types.ErrValidation, target.RelativePath)
	}

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%w: source path not found: %v", types.ErrValidation, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: source path %s is not a directory", types.ErrValidation, source)
	}
	return nil
}
