package resolver

import (
	"context"
	"net/url"
	"regexp"

	"github.com/icedl/icedl/internal/fetch"
)

// Final link sits in a dotted info box on the third page.
var re180Link = regexp.MustCompile(`(?s)<span style="background:#f9f9f9;border:1px dotted #bbb;padding:7px;">.+?<a href="(.+?)">`)

func resolve180Upload(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "180Upload"

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	id, err := find(host, page.Body, reHiddenID, "id")
	if err != nil {
		return Result{}, err
	}
	rand, err := find(host, page.Body, reHiddenRand, "rand")
	if err != nil {
		return Result{}, err
	}

	data := url.Values{}
	data.Set("op", "download1")
	data.Set("id", id)
	data.Set("rand", rand)
	data.Set("method_free", "")

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	id, err = find(host, page.Body, reHiddenID, "id")
	if err != nil {
		return Result{}, err
	}
	rand, err = find(host, page.Body, reHiddenRand, "rand")
	if err != nil {
		return Result{}, err
	}

	data = url.Values{}
	data.Set("op", "download2")
	data.Set("id", id)
	data.Set("rand", rand)
	data.Set("method_free", "")
	data.Set("down_direct", "1")

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	link, err := find(host, page.Body, re180Link, "download link")
	if err != nil {
		return Result{}, err
	}
	return Result{Link: link}, nil
}
