package main

import "github.com/quillhost/installer/internal/cli"

func main() {
	cli.Execute()
}
