package main

import "github.com/replicode-ai/replicode/internal/cli"

func main() {
	cli.Execute()
}
