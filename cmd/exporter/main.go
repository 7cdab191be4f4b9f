package main

import "github.com/vietddude/exporter/internal/cli"

func main() {
	cli.Execute()
}
