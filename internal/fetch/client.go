package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrComm marque un échec de communication (réseau, DNS, statut serveur),
// par opposition aux échecs de format de page. Le message utilisateur
// associé invite à vérifier la connectivité, pas à changer de source.
var ErrComm = errors.New("communication failure")

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/120.0"

var reSetCookiePair = regexp.MustCompile(`([^=]+=[^=;]+)`)

type Options struct {
	Referrer string
	Cookie   string
	// SaveCookie extrait la première paire name=value du Set-Cookie de la
	// réponse; certaines pages miroir ne livrent leurs sources qu'avec ce
	// cookie rejoué sur les requêtes ajax suivantes.
	SaveCookie bool
}

type Result struct {
	Body      string
	SetCookie string
}

// Client émet des GET/POST bloquants avec User-Agent et Referer imposés.
// Les sites servis ici refusent les requêtes sans referrer valide.
type Client struct {
	http     *http.Client
	logger   zerolog.Logger
	ua       string
	referrer string
}

func NewClient(logger zerolog.Logger, userAgent, referrer string, timeout time.Duration) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		ua:       userAgent,
		referrer: referrer,
	}
}

// UserAgent expose l'UA effectif, pour les transferts qui n'empruntent
// pas ce client.
func (c *Client) UserAgent() string { return c.ua }

func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (Result, error) {
	return c.do(ctx, http.MethodGet, rawURL, "", opts)
}

// PostForm envoie values en application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, rawURL string, values url.Values, opts Options) (Result, error) {
	return c.do(ctx, http.MethodPost, rawURL, values.Encode(), opts)
}

func (c *Client) do(ctx context.Context, method, rawURL, body string, opts Options) (Result, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrComm, err)
	}

	req.Header.Set("User-Agent", c.ua)
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	referrer := c.referrer
	if opts.Referrer != "" {
		referrer = opts.Referrer
	}
	if referrer != "" {
		req.Header.Set("Referer", referrer)
	}
	if opts.Cookie != "" {
		req.Header.Set("Cookie", opts.Cookie)
	}

	c.logger.Debug().Str("method", method).Str("url", rawURL).Msg("http request")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrComm, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("%w: %s returned %s", ErrComm, rawURL, resp.Status)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrComm, err)
	}

	out := Result{Body: string(b)}
	if opts.SaveCookie {
		if sc := resp.Header.Get("Set-Cookie"); sc != "" {
			if m := reSetCookiePair.FindStringSubmatch(sc); m != nil {
				out.SetCookie = m[1]
			}
		}
	}
	return out, nil
}
