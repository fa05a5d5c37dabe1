package app

import (
	"context"
	"net/url"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/fetch"
	"github.com/icedl/icedl/internal/ports"
)

var (
	reCaptchaKey       = regexp.MustCompile(`<iframe src="http://www\.google\.com/recaptcha/api/noscript\?k=(.+?)" height`)
	reCaptchaChallenge = regexp.MustCompile(`challenge : '(.+?)'`)
)

const (
	defaultChallengeURL = "http://www.google.com/recaptcha/api/challenge?k="
	defaultImageURL     = "http://www.google.com/recaptcha/api/image?c="
)

// CaptchaChallenge est un défi en attente de réponse humaine. ImageURL
// pointe sur l'image à déchiffrer.
type CaptchaChallenge struct {
	Challenge string `json:"challenge"`
	ImageURL  string `json:"imageUrl"`
}

// ErrCaptchaFailed signale une réponse refusée; le défi reste en session
// et peut être retenté.
var ErrCaptchaFailed = &CodedError{Code: "captcha_failed", Message: "text does not match captcha image"}

// CaptchaService porte le passage manuel du recaptcha protégeant la
// frame des miroirs: obtention du défi, soumission de la réponse, et
// reprise du chargement des miroirs en cas de succès.
type CaptchaService struct {
	client *fetch.Client
	store  ports.SessionStore
	logger zerolog.Logger

	challengeURL string
	imageURL     string
}

func NewCaptchaService(client *fetch.Client, store ports.SessionStore, logger zerolog.Logger) *CaptchaService {
	return &CaptchaService{
		client:       client,
		store:        store,
		logger:       logger.With().Str("component", "captcha").Logger(),
		challengeURL: defaultChallengeURL,
		imageURL:     defaultImageURL,
	}
}

// Begin recharge la page protégée, suit la frame noscript du recaptcha
// et retient le jeton de défi avec l'URL d'origine pour la soumission.
func (s *CaptchaService) Begin(ctx context.Context, pageURL string) (*CaptchaChallenge, error) {
	page, err := s.client.Get(ctx, pageURL, fetch.Options{})
	if err != nil {
		return nil, &CodedError{Code: "network_error", Message: "loading captcha page", Err: err}
	}
	key := reCaptchaKey.FindStringSubmatch(page.Body)
	if key == nil {
		return nil, &CodedError{Code: "host_format", Message: "recaptcha key not found"}
	}

	chPage, err := s.client.Get(ctx, s.challengeURL+key[1], fetch.Options{})
	if err != nil {
		return nil, &CodedError{Code: "network_error", Message: "loading captcha challenge", Err: err}
	}
	challenge := reCaptchaChallenge.FindStringSubmatch(chPage.Body)
	if challenge == nil {
		return nil, &CodedError{Code: "host_format", Message: "recaptcha challenge not found"}
	}

	if err := s.store.Set(ctx, KeyCaptcha, []byte(challenge[1])); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, KeyPageURL, []byte(pageURL)); err != nil {
		return nil, err
	}
	s.logger.Info().Str("url", pageURL).Msg("captcha challenge prêt")
	return &CaptchaChallenge{
		Challenge: challenge[1],
		ImageURL:  s.imageURL + challenge[1],
	}, nil
}

// Submit rejoue la page protégée avec la réponse de l'utilisateur. En cas
// de succès la page des miroirs est mise en session et ses catégories
// renvoyées; sinon ErrCaptchaFailed, le défi restant valable.
func (s *CaptchaService) Submit(ctx context.Context, answer string) ([]Quality, error) {
	if answer == "" {
		return nil, &CodedError{Code: "invalid_params", Message: "empty captcha answer"}
	}
	pageURL := getString(ctx, s.store, KeyPageURL)
	challenge := getString(ctx, s.store, KeyCaptcha)
	if pageURL == "" || challenge == "" {
		return nil, &CodedError{Code: "invalid_params", Message: "no pending captcha challenge"}
	}

	form := url.Values{}
	form.Set("recaptcha_challenge_field", challenge)
	form.Set("recaptcha_response_field", answer)
	page, err := s.client.PostForm(ctx, pageURL, form, fetch.Options{SaveCookie: true})
	if err != nil {
		return nil, &CodedError{Code: "network_error", Message: "submitting captcha", Err: err}
	}
	if reCaptchaFrame.MatchString(page.Body) {
		s.logger.Info().Msg("réponse captcha refusée")
		return nil, ErrCaptchaFailed
	}

	if page.SetCookie != "" {
		_ = s.store.Set(ctx, KeyCookie, []byte(page.SetCookie))
	}
	if err := s.store.Set(ctx, KeyMirror, []byte(page.Body)); err != nil {
		return nil, err
	}
	_ = s.store.Delete(ctx, KeyCaptcha)
	_ = s.store.Delete(ctx, KeyPageURL)
	return detectQualities(page.Body), nil
}
