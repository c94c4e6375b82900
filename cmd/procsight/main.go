package main

import "github.com/procsight/procsight/internal/cli"

func main() {
	cli.Execute()
}
