package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/icedl/icedl/internal/domain"
	"github.com/icedl/icedl/internal/ports"
)

// Clés de la session partagée entre les opérations d'une même sélection.
// Elles sont remises à zéro par LoadMirrors, et enrichies ensuite au fil
// des appels (captcha, tables de parts, etc.).
const (
	KeyVideoName   = "videoname"
	KeyDescription = "description"
	KeyPoster      = "poster"
	KeyMPAA        = "mpaa"
	KeyMediaPath   = "mediapath"
	KeyTVShowName  = "mediatvshowname"
	KeyMirror      = "mirror"
	KeyMirrorURL   = "mirrorurl"
	KeyCaptcha     = "captcha"
	KeyPageURL     = "pageurl"
	KeyCookie      = "icecookie"
)

// partsKey nomme la table des parts d'une source: source3parts, etc.
func partsKey(source int) string {
	return fmt.Sprintf("source%dparts", source)
}

func getString(ctx context.Context, store ports.SessionStore, key string) string {
	v, err := store.Get(ctx, key)
	if err != nil {
		return ""
	}
	return string(v)
}

func loadParts(ctx context.Context, store ports.SessionStore, source int) (map[int]string, error) {
	raw, err := store.Get(ctx, partsKey(source))
	if errors.Is(err, ports.ErrNotFound) {
		return map[int]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, err
	}
	parts := make(map[int]string, len(byKey))
	for k, v := range byKey {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		parts[n] = v
	}
	return parts, nil
}

func saveParts(ctx context.Context, store ports.SessionStore, source int, parts map[int]string) error {
	byKey := make(map[string]string, len(parts))
	for n, u := range parts {
		byKey[strconv.Itoa(n)] = u
	}
	raw, err := json.Marshal(byKey)
	if err != nil {
		return err
	}
	return store.Set(ctx, partsKey(source), raw)
}

// Metadata relit les artefacts posés par LoadMirrors. Les clés absentes
// donnent des champs vides, jamais une erreur.
func Metadata(ctx context.Context, store ports.SessionStore) domain.Artifacts {
	return domain.Artifacts{
		VideoName:   getString(ctx, store, KeyVideoName),
		Description: getString(ctx, store, KeyDescription),
		Poster:      getString(ctx, store, KeyPoster),
		MPAA:        getString(ctx, store, KeyMPAA),
		MediaPath:   getString(ctx, store, KeyMediaPath),
	}
}
