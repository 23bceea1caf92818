package main

import "github.com/tern-data/sqlport/cmd"

func main() {
	cmd.Execute()
}
