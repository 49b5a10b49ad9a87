// The vbctl command provides a command-line interface for operating a
// voice bridge deployment.
package main

import "github.com/voicebridge/voicebridge/internal/vbctl/cmd"

func main() {
	cmd.Execute()
}
