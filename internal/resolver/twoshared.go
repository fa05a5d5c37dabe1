package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/icedl/icedl/internal/fetch"
)

var (
	re2sTimeToWait = regexp.MustCompile(`<span id="timeToWait">(.+?)</span>`)
	re2sD3Fid      = regexp.MustCompile(`<input type="hidden" name="d3fid" value="(.+?)">`)
	re2sD3Link     = regexp.MustCompile(`<input type="hidden" name="d3link" value="(.+?)">`)
)

func resolveTwoShared(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "2Shared"

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	if strings.Contains(page.Body, "Your free download limit is over.") {
		msg := "free download limit is over"
		if m := re2sTimeToWait.FindStringSubmatch(page.Body); m != nil {
			msg = "free download limit is over, wait " + m[1]
		}
		return Result{}, quotaErr(host, msg)
	}

	d3fid, err := find(host, page.Body, re2sD3Fid, "d3fid")
	if err != nil {
		return Result{}, err
	}
	d3link, err := find(host, page.Body, re2sD3Link, "d3link")
	if err != nil {
		return Result{}, err
	}

	// Le lien est déjà dans la page mais ne s'active qu'après ce POST.
	data := url.Values{}
	data.Set("d3fid", d3fid)
	data.Set("d3link", d3link)
	if _, err := rg.client.PostForm(ctx, pageURL, data, fetch.Options{}); err != nil {
		return Result{}, err
	}
	return Result{Link: d3link}, nil
}
