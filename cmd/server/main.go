package main

import "github.com/Togather-Foundation/eventhost/cmd/server/cmd"

func main() {
	cmd.Execute()
}
