package main

import (
	"github.com/hotshot-go/hotshot/cmd/sequencer/cmd"
)

func main() {
	cmd.Execute()
}
