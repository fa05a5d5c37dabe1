package resolver

import (
	"context"
	"net/url"
	"regexp"

	"github.com/icedl/icedl/internal/fetch"
)

var (
	reBeesPlayerCode = regexp.MustCompile(`(?si)<div id="player_code">.*?<script type='text/javascript'>(eval.+?)</script>`)
	// Le lien vidéo dans le script dépacké se termine par un nom de
	// fichier générique "video.xxx" à remplacer par le vrai fname.
	reBeesFilePrefix = regexp.MustCompile(`("video/divx"src="|addVariable\('file',')(.+?)video[.]`)
)

func resolveShareBees(ctx context.Context, rg *Registry, pageURL string) (Result, error) {
	const host = "ShareBees"

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
	fname, err := find(host, page.Body, reHiddenFname, "fname")
	if err != nil {
		return Result{}, err
	}

	data := url.Values{}
	data.Set("op", "download1")
	data.Set("usr_login", usrLogin)
	data.Set("id", id)
	data.Set("fname", fname)
	data.Set("referer", pageURL)
	data.Set("method_free", "method_free")

	page, err = rg.client.PostForm(ctx, pageURL, data, fetch.Options{})
	if err != nil {
		return Result{}, err
	}

	packed, err := find(host, page.Body, reBeesPlayerCode, "player code")
	if err != nil {
		return Result{}, err
	}
	unpacked, ok := Unpack(packed)
	if !ok {
		return Result{}, formatErr(host, "packed player script")
	}

	m := reBeesFilePrefix.FindStringSubmatch(unpacked)
	if m == nil {
		return Result{}, formatErr(host, "video link")
	}
	return Result{Link: m[2] + fname}, nil
}
