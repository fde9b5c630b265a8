package main

import (
	"fmt"
	"os"

	_ "time/tzdata" // scheduler.timezone must resolve in minimal containers
)

func main() {
	if err := rootApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
