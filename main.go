package main

import "github.com/wormhole-demo/bridgeops/cmd"

func main() {
	cmd.Execute()
}
