package main

import "github.com/veristake/bondmarket/cmd"

func main() {
	cmd.Execute()
}
