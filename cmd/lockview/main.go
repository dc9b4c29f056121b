package main

import "github.com/lockview-project/lockview/internal/cli"

func main() {
	cli.Execute()
}
