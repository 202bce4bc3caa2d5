//go:build guardstack_release

package stackopts

import "github.com/solidifylabs/guardstack/types"

// DefaultLevel is the protection level used in the absence of a Level()
// option.
const DefaultLevel = types.Release
