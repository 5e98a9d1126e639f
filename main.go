package main

import "github.com/agentic-research/wfsproxy-manager/cmd"

func main() {
	cmd.Execute()
}
