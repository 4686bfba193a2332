package main

import "voiceeval/cmd"

func main() {
	cmd.Execute()
}
