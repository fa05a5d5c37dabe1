package resolver

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"

	"github.com/icedl/icedl/internal/fetch"
)

func resolveMinus(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "Minus"

	u, err := url.Parse(pageURL)
	if err != nil {
		return Result{}, formatErr(host, "page url")
	}
	filename := path.Base(u.Path)
	if filename == "." || filename == "/" || filename == "" {
		return Result{}, formatErr(host, "filename")
	}

	page, err := rg.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	// L'id et le préfixe sécurisé du fichier sont dans un blob JSON
	// inliné, repéré par le nom de fichier exact.
	pattern := fmt.Sprintf(`(?s)"id": "([^\s]*?)", "modal_image_width": 0, "thumbnails": "", "caption_html": "", "has_hdvideo": false, "orig_mlist_name": "", "name": "%s".*?"secure_prefix": "(.+?)",`, regexp.QuoteMeta(filename))
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Result{}, formatErr(host, "filename pattern")
	}
	m := re.FindStringSubmatch(page.Body)
	if m == nil {
		return Result{}, formatErr(host, "file entry")
	}
	return Result{Link: fmt.Sprintf("http://i.minus.com%s/d%s/%s", m[2], m[1], filename)}, nil
}
