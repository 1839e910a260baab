package main

import (
	"os"

	"github.com/jpmec/mongo-nonx86/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
