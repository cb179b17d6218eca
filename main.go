package main

import "squish/cmd"

func main() {
	cmd.Execute()
}
