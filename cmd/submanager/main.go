package main

import "github.com/devbush/submanager/internal/adapters/cli"

func main() {
	cli.Execute()
}
