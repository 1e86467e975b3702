package main

import "quillc/cmd"

func main() {
	cmd.Execute()
}
