//	@title			AppForge API
//	@version		1.0
//	@description	AppForge generates, previews and runs full-stack applications driven by an AI agent

//	@BasePath	/api/v0

//	@tag.name			ai
//	@tag.description	Conversational generation and recovery operations

//	@tag.name			chat
//	@tag.description	Chat history operations

//	@tag.name			context
//	@tag.description	Project context operations

//	@tag.name			errors
//	@tag.description	Build and runtime error operations

//	@tag.name			preview
//	@tag.description	Preview build operations

//	@tag.name			backends
//	@tag.description	Backend process operations

//	@tag.name			projects
//	@tag.description	Project management operations

//	@tag.name			packages
//	@tag.description	Package installation operations

//	@tag.name			database
//	@tag.description	Database administration operations

//	@tag.name			health
//	@tag.description	Operational endpoints for monitoring and health

package main

import (
	"os"

	"github.com/appforge/appforge/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
