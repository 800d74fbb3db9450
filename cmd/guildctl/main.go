package main

import (
	"github.com/vietddude/guildctl/internal/cli"
)

func main() {
	cli.Execute()
}
