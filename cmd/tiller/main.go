package main

import "github.com/gardentiller/tiller/internal/cli"

func main() {
	cli.Execute()
}
