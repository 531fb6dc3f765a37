package main

import (
	"github.com/consensus-shipyard/ipc-checkpointer/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
