package app

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/fetch"
	"github.com/icedl/icedl/internal/ports"
)

// maxSourceNumber borne le balayage des sources d'une catégorie. Le site
// n'en affiche jamais plus d'une vingtaine.
const maxSourceNumber = 21

var (
	reAjaxSec    = regexp.MustCompile(`f\.lastChild\.value="(.+?)",a`)
	reAjaxToken  = regexp.MustCompile(`"&t=([^"]+)",`)
	reAjaxCookie = regexp.MustCompile(`<cookie>(.+?)</cookie>`)
	reAjaxURL    = regexp.MustCompile(`url=(http[^&]+)`)
	rePartPair   = regexp.MustCompile(`onclick='go\((\d+)\)'>PART\s+(\d+)`)
)

// ajaxArgs porte les ingrédients de la requête XHR du lecteur. iqs, url
// et cap sont toujours vides dans le JS d'origine; m simule le compteur
// de mousemove (négatif) et s les secondes écoulées depuis le chargement.
type ajaxArgs struct {
	sec    string
	token  string
	cookie string
}

// SourceService énumère les sources d'une catégorie de qualité et
// traduit chaque identifiant du lecteur en URL d'hébergeur via
// l'endpoint AJAX.
type SourceService struct {
	client   *fetch.Client
	store    ports.SessionStore
	settings *SettingsService
	logger   zerolog.Logger
	ajaxURL  string
	randInt  func(lo, hi int) int
}

func NewSourceService(client *fetch.Client, store ports.SessionStore, settings *SettingsService, ajaxURL string, logger zerolog.Logger) *SourceService {
	return &SourceService{
		client:   client,
		store:    store,
		settings: settings,
		logger:   logger.With().Str("component", "sources").Logger(),
		ajaxURL:  ajaxURL,
		randInt: func(lo, hi int) int {
			return lo + rand.Intn(hi-lo)
		},
	}
}

// List extrait les sources du bloc de qualité demandé dans la page de
// miroirs en session. Chaque part résolue est mémorisée dans la table
// source<N>parts pour l'empilage ultérieur.
func (s *SourceService) List(ctx context.Context, quality Quality) ([]domain.Source, error) {
	header, ok := qualityHeaders[quality]
	if !ok {
		return nil, &CodedError{Code: "invalid_params", Message: fmt.Sprintf("unknown quality %q", quality)}
	}
	page := getString(ctx, s.store, KeyMirror)
	if page == "" {
		return nil, &CodedError{Code: "invalid_params", Message: "no mirror page loaded, call mirrors first"}
	}

	reBlock := regexp.MustCompile(`(?s)<div class=ripdiv><b>` + regexp.QuoteMeta(header) + `</b>(.+?)</div>`)
	block := reBlock.FindStringSubmatch(page)
	if block == nil {
		return nil, ports.ErrNotFound
	}

	args, err := extractAjaxArgs(page)
	if err != nil {
		return nil, err
	}

	stacked, _ := s.settings.Get(ctx)

	var sources []domain.Source
	for n := 1; n <= maxSourceNumber; n++ {
		found, err := s.scanSource(ctx, block[1], n, args, stacked.StackMultiPart)
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}
	return sources, nil
}

func extractAjaxArgs(page string) (ajaxArgs, error) {
	sec := reAjaxSec.FindStringSubmatch(page)
	token := reAjaxToken.FindStringSubmatch(page)
	if sec == nil || token == nil {
		return ajaxArgs{}, &CodedError{Code: "host_format", Message: "player secrets not found in mirror page"}
	}
	args := ajaxArgs{sec: sec[1], token: token[1]}
	if c := reAjaxCookie.FindStringSubmatch(page); c != nil {
		args.cookie = c[1]
	}
	return args, nil
}

// scanSource cherche la source numéro n dans le bloc. Une source en
// plusieurs parts donne soit une entrée repliée "Multiple Parts", soit
// une entrée par part, selon le réglage stack-multi-part.
func (s *SourceService) scanSource(ctx context.Context, block string, n int, args ajaxArgs, stack bool) ([]domain.Source, error) {
	label := fmt.Sprintf("Source #%d", n)
	if !strings.Contains(block, label) {
		return nil, nil
	}

	reMulti := regexp.MustCompile(`(?s)<p>Source #` + strconv.Itoa(n) + `: (.+?)PART 1(.+?)</i><p>`)
	if multi := reMulti.FindStringSubmatch(block); multi != nil {
		return s.scanParts(ctx, multi[1]+"PART 1"+multi[2], n, label, args, stack)
	}

	reSingle := regexp.MustCompile(`<a\s+rel=` + strconv.Itoa(n) + `.+?onclick='go\((\d+)\)'>Source\s+#` + strconv.Itoa(n) + `:`)
	single := reSingle.FindStringSubmatch(block)
	if single == nil {
		return nil, nil
	}
	hostURL, err := s.fetchSourceURL(ctx, single[1], args)
	if err != nil {
		return nil, err
	}
	if hostURL == "" {
		return nil, nil
	}
	host := hostTag(hostURL)
	return []domain.Source{{
		Index: n,
		Host:  host,
		Name:  sourceName(label, host, "Full"),
		URL:   hostURL,
	}}, nil
}

func (s *SourceService) scanParts(ctx context.Context, scrape string, n int, label string, args ajaxArgs, stack bool) ([]domain.Source, error) {
	parts, err := loadParts(ctx, s.store, n)
	if err != nil {
		return nil, err
	}

	var (
		out   []domain.Source
		first *domain.Source
	)
	for _, pair := range rePartPair.FindAllStringSubmatch(scrape, -1) {
		id, partStr := pair[1], pair[2]
		partNum, err := strconv.Atoi(partStr)
		if err != nil {
			continue
		}
		hostURL, err := s.fetchSourceURL(ctx, id, args)
		if err != nil {
			return nil, err
		}
		if hostURL == "" {
			continue
		}
		parts[partNum] = hostURL
		host := hostTag(hostURL)

		src := domain.Source{
			Index: n,
			Host:  host,
			Name:  sourceName(label, host, "Part "+partStr),
			URL:   hostURL,
			Parts: []domain.Part{{Number: partNum, URL: hostURL}},
		}
		if partNum == 1 {
			first = &src
		}
		if !stack {
			out = append(out, src)
		}
	}

	if err := saveParts(ctx, s.store, n, parts); err != nil {
		return nil, err
	}

	if stack && first != nil {
		first.Name = strings.Replace(first.Name, "Part 1", "Multiple Parts", 1)
		first.Parts = first.Parts[:0]
		for num, u := range parts {
			first.Parts = append(first.Parts, domain.Part{Number: num, URL: u})
		}
		out = append(out, *first)
	}
	return out, nil
}

// fetchSourceURL rejoue la requête XHR du lecteur pour un id donné et
// décode l'URL d'hébergeur de la réponse. Réponse vide = source morte,
// pas une erreur.
func (s *SourceService) fetchSourceURL(ctx context.Context, id string, args ajaxArgs) (string, error) {
	form := url.Values{}
	form.Set("iqs", "")
	form.Set("url", "")
	form.Set("cap", "")
	form.Set("sec", args.sec)
	form.Set("t", args.token)
	form.Set("id", id)
	form.Set("m", strconv.Itoa(-s.randInt(100, 300)))
	form.Set("s", strconv.Itoa(s.randInt(5, 50)))

	cookie := args.cookie
	if cookie == "" {
		cookie = getString(ctx, s.store, KeyCookie)
	}
	res, err := s.client.PostForm(ctx, s.ajaxURL, form, fetch.Options{
		Referrer: getString(ctx, s.store, KeyMirrorURL),
		Cookie:   cookie,
	})
	if err != nil {
		return "", &CodedError{Code: "network_error", Message: "player ajax call", Err: err}
	}
	m := reAjaxURL.FindStringSubmatch(res.Body)
	if m == nil {
		s.logger.Debug().Str("id", id).Msg("pas d'url dans la réponse ajax")
		return "", nil
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return "", &CodedError{Code: "host_format", Message: "malformed source url", Err: err}
	}
	return decoded, nil
}

func hostTag(rawURL string) domain.Host {
	return domain.HostOf(rawURL)
}

// sourceName compose le libellé affiché: "Source #3 | MU | Part 2".
// Les sources sans hébergeur connu s'affichent sans tag.
func sourceName(label string, host domain.Host, part string) string {
	if host == domain.HostDirect {
		return label + " | " + part
	}
	return label + " | " + string(host) + " | " + part
}
