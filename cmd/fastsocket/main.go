package main

import "github.com/searchktools/fast-socket/cmd"

func main() {
	cmd.Execute()
}
