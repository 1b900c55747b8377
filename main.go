package main

import (
	"os"

	"github.com/sca-tools/bdreport/cmd"
)

// main function remains to call Execute.
func main() {
	cmd.Execute(os.Args[1:])
}
