package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/icedl/icedl/internal/fetch"
)

var (
	reOrbMethodFree = regexp.MustCompile(`<input type="submit" name="method_free" value="(.+?)" class="btn2">`)
	reOrbLink       = regexp.MustCompile(`ACTION="(.+?)">`)
)

func resolveUploadOrb(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "UploadOrb"

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return Result{}, err
	}
	if strings.Contains(page.Body, maintenanceMarker) {
		return Result{}, maintenanceErr(host)
	}

	op, err := find(host, page.Body, reHiddenOp, "op")
	if err != nil {
		return Result{}, err
	}
	usrLogin, err := find(host, page.Body, reHiddenUsrLogin, "usr_login")
	if err != nil {
		return Result{}, err
	}
	id, err := find(host, page.Body, reHiddenID, "id")
	if err != nil {
		return Result{}, err
	}
	fname, err := find(host, page.Body, reHiddenFname, "fname")
	if err != nil {
		return Result{}, err
	}
	methodFree, err := find(host, page.Body, reOrbMethodFree, "method_free")
	if err != nil {
		return Result{}, err
	}

	data := url.Values{}
	data.Set("op", op)
	data.Set("usr_login", usrLogin)
	data.Set("id", id)
	data.Set("fname", fname)
	data.Set("referer", pageURL)
	data.Set("method_free", methodFree)

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	op, err = find(host, page.Body, reHiddenOp, "op")
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
	methodFree, err = find(host, page.Body, reHiddenMethodFree, "method_free")
	if err != nil {
		return Result{}, err
	}
	downDirect, err := find(host, page.Body, reHiddenDownDirect, "down_direct")
	if err != nil {
		return Result{}, err
	}

	data = url.Values{}
	data.Set("op", op)
	data.Set("id", id)
	data.Set("rand", rand)
	data.Set("referer", pageURL)
	data.Set("method_free", methodFree)
	data.Set("down_direct", downDirect)

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	link, err := find(host, page.Body, reOrbLink, "download link")
	if err != nil {
		return Result{}, err
	}
	return Result{Link: link}, nil
}
