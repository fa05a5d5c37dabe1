package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/icedl/icedl/internal/domain"
)

const filePageBody = `
<html>
<span style="font-size:large;color:white;">The Movie (2009)</span>
<table><tr><th>Description:</th><td>A fine movie<br>more</td></tr>
<tr><th>MPAA Rating:</th><td>Rated PG-13</td></tr></table>
<img width=250 src=http://img.example.com/poster.jpg style="border:0">
<iframe src="/membersonly/components/com_iceplayer/video.php?h=374&w=631&vid=12345&img=" width=631 height=377></iframe>
</html>`

const mirrorFrameBody = `
<html>
<div class=ripdiv><b>DVDRip / Standard Def</b><a rel=1 onclick='go(101)'>Source #1:</a></div>
<div class=ripdiv><b>HD 720p</b><a rel=2 onclick='go(102)'>Source #2:</a></div>
<script>f.lastChild.value="SEC123",a</script>
<script>x="&t=TOK456",</script>
<cookie>PHPSESSID=zz</cookie>
</html>`

func newMirrorSite(t *testing.T, mirrorBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ip.php":
			_, _ = w.Write([]byte(filePageBody))
		case "/membersonly/components/com_iceplayer/video.php":
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "srv1", Path: "/"})
			_, _ = w.Write([]byte(mirrorBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestMirrors(store *memStore, baseURL string, st domain.Settings) (*MirrorService, *CaptchaService) {
	client := testFetchClient()
	captcha := NewCaptchaService(client, store, testLogger())
	settings := NewSettingsService(newMemSettingsRepo(st), testLogger())
	return NewMirrorService(client, store, captcha, settings, baseURL, testLogger()), captcha
}

func TestMirrorService_LoadSavesMetadataAndMirror(t *testing.T) {
	ctx := context.Background()
	ts := newMirrorSite(t, mirrorFrameBody)
	defer ts.Close()

	store := newMemStore()
	svc, _ := newTestMirrors(store, ts.URL, domain.DefaultSettings())

	info, err := svc.Load(ctx, ts.URL+"/ip.php")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if info.Artifacts.VideoName != "The Movie (2009)" {
		t.Fatalf("videoname: got %q", info.Artifacts.VideoName)
	}
	if info.Artifacts.Description != "A fine movie" {
		t.Fatalf("description: got %q", info.Artifacts.Description)
	}
	if info.Artifacts.Poster != "http://img.example.com/poster.jpg" {
		t.Fatalf("poster: got %q", info.Artifacts.Poster)
	}
	if info.Artifacts.MPAA != "PG-13" {
		t.Fatalf("mpaa: want rating without the Rated prefix, got %q", info.Artifacts.MPAA)
	}
	if info.Artifacts.MediaPath != "Movies/The Movie (2009)" {
		t.Fatalf("mediapath: got %q", info.Artifacts.MediaPath)
	}

	if len(info.Qualities) != 2 || info.Qualities[0] != QualityDVDRip || info.Qualities[1] != QualityHD720p {
		t.Fatalf("qualities: got %v", info.Qualities)
	}
	if info.AutoQuality != nil {
		t.Fatalf("two categories must not auto-select, got %v", *info.AutoQuality)
	}
	if info.Captcha != nil {
		t.Fatalf("no captcha expected")
	}

	if got := getString(ctx, store, KeyMirror); !strings.Contains(got, "Source #1:") {
		t.Fatalf("mirror page not saved, got %q", got)
	}
	if got := getString(ctx, store, KeyCookie); got != "PHPSESSID=srv1" {
		t.Fatalf("cookie: got %q", got)
	}
	if got := getString(ctx, store, KeyMirrorURL); !strings.Contains(got, "/membersonly/components/com_iceplayer/video.php") {
		t.Fatalf("mirrorurl: got %q", got)
	}
}

func TestMirrorService_SingleCategoryAutoSelects(t *testing.T) {
	ctx := context.Background()
	singleBody := `
<html>
<div class=ripdiv><b>DVDRip / Standard Def</b><a rel=1 onclick='go(101)'>Source #1:</a></div>
<script>f.lastChild.value="SEC123",a</script>
<script>x="&t=TOK456",</script>
<cookie>PHPSESSID=zz</cookie>
</html>`
	ts := newMirrorSite(t, singleBody)
	defer ts.Close()

	svc, _ := newTestMirrors(newMemStore(), ts.URL, domain.DefaultSettings())
	info, err := svc.Load(ctx, ts.URL+"/ip.php")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.AutoQuality == nil || *info.AutoQuality != QualityDVDRip {
		t.Fatalf("auto quality: got %v", info.AutoQuality)
	}

	// Aplatissement désactivé: le client garde l'écran de choix.
	st := domain.DefaultSettings()
	st.FlattenSourceType = false
	svc, _ = newTestMirrors(newMemStore(), ts.URL, st)
	info, err = svc.Load(ctx, ts.URL+"/ip.php")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.AutoQuality != nil {
		t.Fatalf("flatten off must not auto-select, got %v", *info.AutoQuality)
	}
}

func TestMirrorService_EpisodePageUsesTVShowPath(t *testing.T) {
	ctx := context.Background()
	episodeBody := strings.Replace(filePageBody, "</html>",
		`<a>Episodes</a><img alt='Show series: The Show'></html>`, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ip.php":
			_, _ = w.Write([]byte(episodeBody))
		default:
			_, _ = w.Write([]byte(mirrorFrameBody))
		}
	}))
	defer ts.Close()

	store := newMemStore()
	svc, _ := newTestMirrors(store, ts.URL, domain.DefaultSettings())

	if _, err := svc.Load(ctx, ts.URL+"/ip.php"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := getString(ctx, store, KeyMediaPath); got != "TV Shows/The Show" {
		t.Fatalf("mediapath: got %q", got)
	}
}

func TestMirrorService_CaptchaInterceptsMirrors(t *testing.T) {
	ctx := context.Background()
	captchaBody := `
<html>
recaptcha_challenge_field
<iframe src="http://www.google.com/recaptcha/api/noscript?k=SITEKEY" height=300></iframe>
</html>`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ip.php":
			_, _ = w.Write([]byte(filePageBody))
		case "/challenge":
			_, _ = w.Write([]byte(`var x = { challenge : 'CH123' };`))
		default:
			_, _ = w.Write([]byte(captchaBody))
		}
	}))
	defer ts.Close()

	store := newMemStore()
	svc, captcha := newTestMirrors(store, ts.URL, domain.DefaultSettings())
	captcha.challengeURL = ts.URL + "/challenge?k="

	info, err := svc.Load(ctx, ts.URL+"/ip.php")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.Captcha == nil {
		t.Fatalf("expected captcha challenge")
	}
	if info.Captcha.Challenge != "CH123" {
		t.Fatalf("challenge: got %q", info.Captcha.Challenge)
	}
	if !strings.HasSuffix(info.Captcha.ImageURL, "CH123") {
		t.Fatalf("image url: got %q", info.Captcha.ImageURL)
	}

	// Tant que le captcha n'est pas résolu, pas de page miroir en session.
	if got := getString(ctx, store, KeyMirror); got != "" {
		t.Fatalf("mirror must not be saved behind a captcha, got %q", got)
	}
	if got := getString(ctx, store, KeyCaptcha); got != "CH123" {
		t.Fatalf("stored challenge: got %q", got)
	}
}
