package app

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/fetch"
	"github.com/icedl/icedl/internal/ports"
)

// Quality identifie une catégorie de rips sur la page des miroirs.
type Quality string

const (
	QualityDVDRip      Quality = "dvdrip"
	QualityHD720p      Quality = "hd720p"
	QualityDVDScreener Quality = "dvdscreener"
	QualityR5R6        Quality = "r5r6"
)

// qualityHeaders mappe chaque catégorie sur l'en-tête exact de son bloc
// dans la page des miroirs.
var qualityHeaders = map[Quality]string{
	QualityDVDRip:      "DVDRip / Standard Def",
	QualityHD720p:      "HD 720p",
	QualityDVDScreener: "DVD Screener",
	QualityR5R6:        "R5/R6 DVDRip",
}

var (
	reVideoName    = regexp.MustCompile(`<span style="font-size:large;color:white;">(.+?)</span>`)
	reDescription  = regexp.MustCompile(`<th>Description:</th><td>(.+?)<`)
	rePosterImg    = regexp.MustCompile(`<img width=250 src=(.+?) style`)
	rePosterFrame  = regexp.MustCompile(`<iframe src=/noref\.php\?url=(.+?) width=`)
	reMPAA         = regexp.MustCompile(`<th>MPAA Rating:</th><td>(.+?)</td>`)
	reShowName     = regexp.MustCompile(`alt='Show series: (.+?)'`)
	rePlayerFrame  = regexp.MustCompile(`/membersonly/components/com_iceplayer/(.+?img=).*?" width=`)
	reCaptchaFrame = regexp.MustCompile(`recaptcha_challenge_field`)
)

// MirrorInfo résume le chargement d'une page de fichier: métadonnées,
// catégories présentes, et défi captcha éventuel. Quand Captcha est non
// nil, Sources ne rendra rien tant que le défi n'est pas résolu.
type MirrorInfo struct {
	Artifacts domain.Artifacts
	MirrorURL string
	Qualities []Quality
	// AutoQuality est posé quand la page n'offre qu'une catégorie et que
	// l'aplatissement est activé: le client peut sauter l'écran de choix.
	AutoQuality *Quality
	Captcha     *CaptchaChallenge
}

// MirrorService charge la page d'un fichier, en extrait les métadonnées
// et descend dans la frame du lecteur où vivent les miroirs.
type MirrorService struct {
	client   *fetch.Client
	store    ports.SessionStore
	captcha  *CaptchaService
	settings *SettingsService
	logger   zerolog.Logger
	baseURL  string
}

func NewMirrorService(client *fetch.Client, store ports.SessionStore, captcha *CaptchaService, settings *SettingsService, baseURL string, logger zerolog.Logger) *MirrorService {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &MirrorService{
		client:   client,
		store:    store,
		captcha:  captcha,
		settings: settings,
		logger:   logger.With().Str("component", "mirrors").Logger(),
		baseURL:  baseURL,
	}
}

// Load ouvre la page du fichier, enregistre les métadonnées en session
// puis récupère la frame des miroirs. Toute la session précédente est
// écrasée: une sélection chasse l'autre.
func (s *MirrorService) Load(ctx context.Context, pageURL string) (MirrorInfo, error) {
	page, err := s.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return MirrorInfo{}, &CodedError{Code: "network_error", Message: "loading file page", Err: err}
	}

	name := reVideoName.FindStringSubmatch(page.Body)
	if name == nil {
		return MirrorInfo{}, &CodedError{Code: "host_format", Message: "file page has no video name, check the site"}
	}
	_ = s.store.Set(ctx, KeyVideoName, []byte(name[1]))

	if m := reDescription.FindStringSubmatch(page.Body); m != nil {
		_ = s.store.Set(ctx, KeyDescription, []byte(m[1]))
	}
	if m := rePosterImg.FindStringSubmatch(page.Body); m != nil {
		_ = s.store.Set(ctx, KeyPoster, []byte(m[1]))
	} else if m := rePosterFrame.FindStringSubmatch(page.Body); m != nil {
		_ = s.store.Set(ctx, KeyPoster, []byte(m[1]))
	}
	if m := reMPAA.FindStringSubmatch(page.Body); m != nil {
		_ = s.store.Set(ctx, KeyMPAA, []byte(strings.Replace(m[1], "Rated ", "", 1)))
	}

	s.saveMediaPath(ctx, page.Body, name[1])

	frame := rePlayerFrame.FindStringSubmatch(page.Body)
	if frame == nil {
		return MirrorInfo{}, &CodedError{Code: "host_format", Message: "player frame not found on file page"}
	}
	framePath := strings.ReplaceAll(frame[1], "%29", ")")
	framePath = strings.ReplaceAll(framePath, "%28", "(")
	mirrorURL := s.baseURL + "membersonly/components/com_iceplayer/" + framePath

	mirrorPage, err := s.client.Get(ctx, mirrorURL, fetch.Options{SaveCookie: true})
	if err != nil {
		return MirrorInfo{}, &CodedError{Code: "network_error", Message: "loading mirror frame", Err: err}
	}
	if mirrorPage.SetCookie != "" {
		_ = s.store.Set(ctx, KeyCookie, []byte(mirrorPage.SetCookie))
	}
	_ = s.store.Set(ctx, KeyMirrorURL, []byte(mirrorURL))

	info := MirrorInfo{
		Artifacts: Metadata(ctx, s.store),
		MirrorURL: mirrorURL,
	}

	if reCaptchaFrame.MatchString(mirrorPage.Body) {
		ch, err := s.captcha.Begin(ctx, mirrorURL)
		if err != nil {
			return MirrorInfo{}, err
		}
		info.Captcha = ch
		return info, nil
	}

	_ = s.store.Set(ctx, KeyMirror, []byte(mirrorPage.Body))
	info.Qualities = detectQualities(mirrorPage.Body)
	if st, err := s.settings.Get(ctx); err == nil && st.FlattenSourceType && len(info.Qualities) == 1 {
		info.AutoQuality = &info.Qualities[0]
	}
	s.logger.Debug().Str("url", pageURL).Int("qualities", len(info.Qualities)).Msg("mirrors chargés")
	return info, nil
}

// saveMediaPath calcule le sous-dossier média: les épisodes filent sous
// TV Shows/<série>[/<saison>], tout le reste sous Movies/<titre>.
func (s *MirrorService) saveMediaPath(ctx context.Context, body, videoName string) {
	if strings.Contains(body, "Episodes</a>") || strings.Contains(body, "Episode</a>") {
		showName := getString(ctx, s.store, KeyTVShowName)
		if showName != "" {
			_ = s.store.Set(ctx, KeyMediaPath, []byte("TV Shows/"+showName+"/"+showName))
			return
		}
		if m := reShowName.FindStringSubmatch(body); m != nil {
			_ = s.store.Set(ctx, KeyMediaPath, []byte("TV Shows/"+m[1]))
			return
		}
		s.logger.Warn().Msg("nom de série introuvable, mediapath non posé")
		return
	}
	_ = s.store.Set(ctx, KeyMediaPath, []byte("Movies/"+videoName))
}

func detectQualities(body string) []Quality {
	var out []Quality
	for _, q := range []Quality{QualityDVDRip, QualityHD720p, QualityDVDScreener, QualityR5R6} {
		if strings.Contains(body, "<div class=ripdiv><b>"+qualityHeaders[q]+"</b>") {
			out = append(out, q)
		}
	}
	return out
}
