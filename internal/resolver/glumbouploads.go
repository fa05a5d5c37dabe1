package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strconv"

	"github.com/icedl/icedl/internal/fetch"
)

var (
	// fname est posé en javascript, pas en input caché.
	reGlumboFname     = regexp.MustCompile(`input\[name="fname"\]'\)\.attr\('value', '(.+?)'`)
	reGlumboCountdown = regexp.MustCompile(`var cdnum = ([0-9]+);`)
	reGlumboLink      = regexp.MustCompile(`(?s)This download link will work for your IP for 24 hours<br><br>.+?<a href="(.+?)">`)
)

func resolveGlumboUploads(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "GlumboUploads"

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
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
	fname, err := find(host, page.Body, reGlumboFname, "fname")
	if err != nil {
		return Result{}, err
	}
	const methodFree = "Free Download"

	data := url.Values{}
	data.Set("op", "download1")
	data.Set("usr_login", usrLogin)
	data.Set("id", id)
	data.Set("fname", fname)
	data.Set("referer", pageURL)
	data.Set("method_free", methodFree)

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	countdown, err := find(host, page.Body, reGlumboCountdown, "countdown")
	if err != nil {
		return Result{}, err
	}
	rand, err := find(host, page.Body, reHiddenRand, "rand")
	if err != nil {
		return Result{}, err
	}

	// Le lien ne s'active qu'après le décompte; poster avant renvoie la
	// mauvaise seconde page.
	secs, _ := strconv.Atoi(countdown)
	if rg.waiter.Wait(ctx, secs, nil) == Cancelled {
		return Result{}, nil
	}

	data = url.Values{}
	data.Set("op", "download2")
	data.Set("rand", rand)
	data.Set("id", id)
	data.Set("referer", pageURL)
	data.Set("method_free", methodFree)
	data.Set("down_direct", "1")

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	link, err := find(host, page.Body, reGlumboLink, "download link")
	if err != nil {
		return Result{}, err
	}
	return Result{Link: link}, nil
}
