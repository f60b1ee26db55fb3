// Package all imports all shell commands.
package all

import (
	_ "github.com/robotalks/relaynode/pkg/cli/cmds/relay"
)
