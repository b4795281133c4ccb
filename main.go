package main

import "github.com/KaramelBytes/postpulse-cli/cmd"

func main() {
	cmd.Execute()
}
