package main

import (
	"github.com/openmule/gacua/cmd"
)

func main() {
	cmd.Execute()
}
