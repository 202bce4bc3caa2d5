//go:build !guardstack_release

package stackopts

import "github.com/solidifylabs/guardstack/types"

// DefaultLevel is the protection level used in the absence of a Level()
// option. Build with the guardstack_release tag to default to types.Release.
const DefaultLevel = types.Hash
