package main

import "github.com/kiesman99/goat/cmd"

func main() {
	cmd.Execute()
}
