package main

import "github.com/reqtrace/reqtrace/reqtrace/cmd"

func main() {
	cmd.Execute()
}
