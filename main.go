package main

import (
	"github.com/anoixa/catdex/cmd"
)

func main() {
	cmd.Execute()
}
