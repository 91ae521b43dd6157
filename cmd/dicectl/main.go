package main

import "github.com/mcoot/dicemeister/internal/cli"

func main() {
	cli.Execute()
}
