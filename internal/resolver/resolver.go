package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/fetch"
)

// Result est la sortie d'un resolver. Un Link vide sans erreur est un
// échec "soft" (attente annulée par l'utilisateur, limite pas encore
// expirée): rien à jouer, rien à afficher en rouge.
type Result struct {
	Link string `json:"link"`
}

// maintenanceMarker est le texte commun aux hébergeurs XFileSharing
// quand le fichier est momentanément indisponible.
const maintenanceMarker = "This server is in maintenance mode"

// HostError est un échec dur côté hébergeur: page au format inattendu,
// maintenance, ou quota atteint. Jamais retenté automatiquement.
type HostError struct {
	Host   string
	Reason string
	Quota  bool
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: %s", e.Host, e.Reason)
}

func formatErr(host, what string) error {
	return &HostError{Host: host, Reason: "page format changed: " + what + " not found"}
}

func maintenanceErr(host string) error {
	return &HostError{Host: host, Reason: "File is currently unavailable on the host"}
}

func quotaErr(host, msg string) error {
	return &HostError{Host: host, Reason: msg, Quota: true}
}

// find applique un pattern d'extraction figé et renvoie la première
// capture. Premier match gagne, même si la page en contient plusieurs —
// comportement hérité, voir DESIGN.md.
func find(host, html string, re *regexp.Regexp, what string) (string, error) {
	m := re.FindStringSubmatch(html)
	if m == nil {
		return "", formatErr(host, what)
	}
	return m[len(m)-1], nil
}

type resolveFunc func(ctx context.Context, rg *Registry, pageURL string) (Result, error)

type entry struct {
	match string
	host  domain.Host
	fn    resolveFunc
}

// Registry dispatche une URL vers la stratégie de résolution de son
// hébergeur par correspondance de sous-chaîne. Les URLs inconnues passent
// telles quelles: lien direct, rien à résoudre.
type Registry struct {
	client *fetch.Client
	logger zerolog.Logger
	waiter *Waiter
	table  []entry
}

func NewRegistry(logger zerolog.Logger, client *fetch.Client, waiter *Waiter) *Registry {
	rg := &Registry{client: client, logger: logger, waiter: waiter}
	rg.table = []entry{
		{".megaupload.com/", domain.HostMegaupload, nil},
		{"rapidshare.com/", domain.HostRapidShare, nil},
		{".2shared.com/", domain.HostTwoShared, resolveTwoShared},
		{"180upload.com/", domain.Host180Upload, resolve180Upload},
		{"speedy.sh/", domain.HostSpeedyShare, resolveSpeedyShare},
		{"vidhog.com/", domain.HostVidHog, resolveVidHog},
		{"uploadorb.com/", domain.HostUploadOrb, resolveUploadOrb},
		{"sharebees.com/", domain.HostShareBees, resolveShareBees},
		{"glumbouploads.com/", domain.HostGlumboUploads, resolveGlumboUploads},
		{"jumbofiles.com/", domain.HostJumboFiles, resolveJumboFiles},
		{"movreel.com/", domain.HostMovreel, resolveMovreel},
		{"billionuploads.com/", domain.HostBillionUploads, resolveBillionUploads},
		{"minus.com/", domain.HostDirect, resolveMinus},
	}
	return rg
}

// HostTag renvoie le tag court de l'hébergeur d'une URL, pour le nommage
// des sources. Vide pour un lien direct.
func (rg *Registry) HostTag(rawURL string) domain.Host {
	return domain.HostOf(rawURL)
}

// Resolve transforme une URL de page d'hébergeur en lien direct jouable.
func (rg *Registry) Resolve(ctx context.Context, rawURL string) (Result, error) {
	for _, e := range rg.table {
		if !strings.Contains(rawURL, e.match) {
			continue
		}
		if e.fn == nil {
			// Hébergeurs gérés par des modules de compte externes dans
			// l'installation d'origine; ici l'URL passe telle quelle.
			break
		}
		rg.logger.Info().Str("host", string(e.host)).Str("url", rawURL).Msg("resolving")
		res, err := e.fn(ctx, rg, rawURL)
		if err != nil {
			rg.logger.Warn().Err(err).Str("host", string(e.host)).Msg("resolve failed")
		}
		return res, err
	}
	return Result{Link: rawURL}, nil
}
