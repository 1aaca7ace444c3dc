package main

import "github.com/quentel/shufflepod/cmd"

func main() {
	cmd.Execute()
}
