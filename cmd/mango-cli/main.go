package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/vrsandeep/mango-shelf/internal/downloader/providers"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers/mangadex"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers/weebcentral"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)

	providers.Register(mangadex.New())
	providers.Register(weebcentral.New())

	ctx := newCommandContext(nil)
	err := newRootCommand(ctx).Execute()
	ctx.close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
