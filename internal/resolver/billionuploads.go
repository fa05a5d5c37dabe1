package resolver

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/icedl/icedl/internal/fetch"
)

var (
	reBillionMethodFree = regexp.MustCompile(`<input type="hidden" name="method_free" value="(.*?)">`)
	reBillionLink       = regexp.MustCompile(`&product_download_url=(.+?)"`)
)

func resolveBillionUploads(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "BillionUploads"

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	// Court délai fixe avant que le formulaire de la page soit valide.
	if rg.waiter.Wait(ctx, 3, nil) == Cancelled {
		return Result{}, nil
	}

	if strings.Contains(page.Body, maintenanceMarker) {
		return Result{}, maintenanceErr(host)
	}

	rand, err := find(host, page.Body, reHiddenRand, "rand")
	if err != nil {
		return Result{}, err
	}
	id, err := find(host, page.Body, reHiddenID, "id")
	if err != nil {
		return Result{}, err
	}
	methodFree, err := find(host, page.Body, reBillionMethodFree, "method_free")
	if err != nil {
		return Result{}, err
	}
	downDirect, err := find(host, page.Body, reHiddenDownDirect, "down_direct")
	if err != nil {
		return Result{}, err
	}

	data := url.Values{}
	data.Set("op", "download2")
	data.Set("rand", rand)
	data.Set("id", id)
	data.Set("referer", pageURL)
	data.Set("method_free", methodFree)
	data.Set("down_direct", downDirect)

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	link, err := find(host, page.Body, reBillionLink, "download link")
	if err != nil {
		return Result{}, err
	}
	// Ce CDN vérifie le referrer au téléchargement; on le transporte
	// accolé au lien, séparé par un pipe.
	return Result{Link: link + "|referer=" + pageURL}, nil
}
