// ABOUTME: Entry point for the ndactl CLI
// ABOUTME: Terminal client and dev auth service for the NDA portal

package main

import (
	"fmt"
	"os"

	"github.com/jschulte/usmax-nda-sub000/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
