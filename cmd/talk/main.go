// talk bridges a Discord voice channel to the OpenAI Realtime API.
//
// Usage:
//
//	talk serve            # run the bot (and the status server if enabled)
//	talk deploy-commands  # register the /talk and /leave commands
//	talk version
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
