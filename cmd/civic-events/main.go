package main

import "github.com/pfrederiksen/civic-events/internal/cli"

func main() {
	cli.Execute()
}
