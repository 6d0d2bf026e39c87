package dependency

import (
	"fmt"
	"slices"
	"strings"
)

var forbiddenPrefixes = []string{"/etc", "/sys", "/proc", "/dev"}

// ValidateCommandRequest performs security checks before command execution:
//  1. Command whitelist (if configured)
//  2. Argument safety (no path traversal, no system directory access)
func ValidateCommandRequest(req CommandRequest, config ExecutorConfig) error {
	if len(config.AllowedCommands) > 0 && !slices.Contains(config.AllowedCommands, req.Command) {
		return fmt.Errorf("%w: %s (allowed: %v)", ErrCommandNotAllowed, req.Command, config.AllowedCommands)
	}

	for _, arg := range req.Args {
		for _, part := range strings.Split(arg, "/") {
			if part == ".." {
				return fmt.Errorf("%w: path traversal in %q", ErrUnsafeArgument, arg)
			}
		}
		for _, prefix := range forbiddenPrefixes {
			if arg == prefix || strings.HasPrefix(arg, prefix+"/") {
				return fmt.Errorf("%w: system directory %s in %q", ErrUnsafeArgument, prefix, arg)
			}
		}
	}

	return nil
}
