package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/icedl/icedl/internal/fetch"
)

var (
	reVidHogMethodFree = regexp.MustCompile(`<input type="submit" name="method_free" value="(.+?)" class="freebtn right">`)
	reVidHogCountdown  = regexp.MustCompile(`<span id="countdown_str">Wait <span id=".+?">([0-9]*)</span>`)
	reVidHogLink       = regexp.MustCompile(`<strong><a href="(.+?)">Click Here to download this file</a></strong>`)
)

func resolveVidHog(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "VidHog"

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
	methodFree, err := find(host, page.Body, reVidHogMethodFree, "method_free")
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
	waitStr, err := find(host, page.Body, reVidHogCountdown, "countdown")
	if err != nil {
		return Result{}, err
	}
	waitSecs, _ := strconv.Atoi(waitStr)

	// Compte à rebours imposé aux comptes gratuits avant activation.
	if rg.waiter.Wait(ctx, waitSecs, nil) == Cancelled {
		return Result{}, nil
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

	link, err := find(host, page.Body, reVidHogLink, "download link")
	if err != nil {
		return Result{}, err
	}
	return Result{Link: link}, nil
}
