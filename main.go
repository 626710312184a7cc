package main

import "appdeck/cmd/appdeck/commands"

func main() {
	commands.Execute()
}
