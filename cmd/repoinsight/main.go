package main

import (
	"context"
	"os"

	"github.com/qs3c/repoinsight/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
