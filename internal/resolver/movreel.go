package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/icedl/icedl/internal/fetch"
)

var (
	reMovreelMethodFree = regexp.MustCompile(`<input type="submit" name="method_free" style=".+?" value="(.+?)">`)
	reMovreelErr        = regexp.MustCompile(`<p class="err">(.+?)</p>`)
	reMovreelLink       = regexp.MustCompile(`(?s)<a id="lnk_download" href="(.+?)">Download Original Video</a>`)
)

func resolveMovreel(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "Movreel"

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
	methodFree, err := find(host, page.Body, reMovreelMethodFree, "method_free")
	if err != nil {
		return Result{}, err
	}

	data := url.Values{}
	data.Set("op", op)
	data.Set("usr_login", usrLogin)
	data.Set("id", id)
	data.Set("referer", pageURL)
	data.Set("fname", fname)
	data.Set("method_free", methodFree)

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	// Limite de téléchargement: l'hébergeur affiche son message, on le
	// remonte tel quel.
	if m := reMovreelErr.FindStringSubmatch(page.Body); m != nil {
		return Result{}, quotaErr(host, m[1])
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

	data = url.Values{}
	data.Set("op", op)
	data.Set("id", id)
	data.Set("rand", rand)
	data.Set("referer", pageURL)
	data.Set("method_free", methodFree)
	data.Set("down_direct", "1")

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	link, err := find(host, page.Body, reMovreelLink, "download link")
	if err != nil {
		return Result{}, err
	}
	return Result{Link: link}, nil
}
