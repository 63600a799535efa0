package main

import (
	"context"

	"github.com/kuroweb/crawlflare/cmd/crawlflare-cli/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
