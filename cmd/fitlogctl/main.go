package main

import "example.com/fitlog/internal/cmd"

func main() {
	cmd.Execute()
}
