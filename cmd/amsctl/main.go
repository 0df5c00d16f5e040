package main

import (
	"os"

	"github.com/brandonyach/teamworksams/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
