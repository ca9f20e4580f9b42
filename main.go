package main

import "github.com/sergeevgit1/camoufox-automation/cmd"

func main() {
	cmd.Run()
}
