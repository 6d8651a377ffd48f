package main

import "github.com/chatdesk-ai/chatdesk/cmd"

func main() {
	cmd.Execute()
}
