package main

import "github.com/rotblauer/catmode/cmd"

func main() {
	cmd.Execute()
}
