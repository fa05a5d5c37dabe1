package resolver

import (
	"context"
	"regexp"

	"github.com/icedl/icedl/internal/fetch"
)

var reSpeedyLink = regexp.MustCompile(`<a class=downloadfilename href='(.+?)'>`)

func resolveSpeedyShare(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "SpeedyShare"

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	// Le lien est relatif à l'hôte court, pas à la page.
	link, err := find(host, page.Body, reSpeedyLink, "download link")
	if err != nil {
		return Result{}, err
	}
	return Result{Link: "http://speedy.sh" + link}, nil
}
