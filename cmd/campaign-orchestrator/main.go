package main

import "github.com/purpleteam-labs/campaign-orchestrator/cmd/campaign-orchestrator/cmd"

func main() {
	cmd.Execute()
}
