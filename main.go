package main

import "peerreview/kgraph/cmd"

func main() {
	cmd.Execute()
}
