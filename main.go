package main

import "github.com/msedata/msesync/cmd"

func main() {
	cmd.Execute()
}
