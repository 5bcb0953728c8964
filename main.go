package main

import "github.com/veilbridge/relayer/cmd"

func main() {
	cmd.Execute()
}
