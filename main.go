package main

import "github.com/dt-pm-tools/jira-attachment-migrator/cmd"

func main() {
	cmd.Execute()
}
