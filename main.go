package main

import "github.com/relay-bss/batchmender/cmd"

func main() {
	cmd.Execute()
}
