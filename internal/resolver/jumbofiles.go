package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/icedl/icedl/internal/fetch"
)

var reJumboLink = regexp.MustCompile(`<FORM METHOD="LINK" ACTION="(.+?)">`)

func resolveJumboFiles(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "JumboFiles"

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return Result{}, err
	}
	if strings.Contains(page.Body, maintenanceMarker) {
		return Result{}, maintenanceErr(host)
	}

	id, err := find(host, page.Body, reHiddenID, "id")
	if err != nil {
		return Result{}, err
	}

	data := url.Values{}
	data.Set("op", "download1")
	data.Set("id", id)
	data.Set("referer", pageURL)
	data.Set("method_free", "method_free")

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	id, err = find(host, page.Body, reHiddenID, "id")
	if err != nil {
		return Result{}, err
	}
	rand, err := find(host, page.Body, reHiddenRand, "rand")
	if err != nil {
		return Result{}, err
	}

	data = url.Values{}
	data.Set("op", "download2")
	data.Set("id", id)
	data.Set("rand", rand)
	data.Set("method_free", "method_free")

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	link, err := find(host, page.Body, reJumboLink, "download link")
	if err != nil {
		return Result{}, err
	}
	return Result{Link: link}, nil
}
