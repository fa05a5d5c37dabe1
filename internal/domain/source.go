package domain

import "strings"

// Host identifie un hébergeur supporté. Le tag court est celui affiché
// dans le nom des sources (ex: "Source #3 | VH | Part 2").
type Host string

const (
	HostMegaupload     Host = "MU"
	HostTwoShared      Host = "2S"
	HostRapidShare     Host = "RS"
	Host180Upload      Host = "180"
	HostSpeedyShare    Host = "SS"
	HostVidHog         Host = "VH"
	HostUploadOrb      Host = "UO"
	HostShareBees      Host = "SB"
	HostGlumboUploads  Host = "GU"
	HostJumboFiles     Host = "JF"
	HostMovreel        Host = "MR"
	HostBillionUploads Host = "BU"
	HostDirect         Host = ""
)

// hostMarkers associe chaque hébergeur au fragment d'URL qui le trahit.
var hostMarkers = []struct {
	marker string
	host   Host
}{
	{".megaupload.com/", HostMegaupload},
	{".2shared.com/", HostTwoShared},
	{"rapidshare.com/", HostRapidShare},
	{"180upload.com/", Host180Upload},
	{"speedy.sh/", HostSpeedyShare},
	{"vidhog.com/", HostVidHog},
	{"uploadorb.com/", HostUploadOrb},
	{"sharebees.com/", HostShareBees},
	{"glumbouploads.com/", HostGlumboUploads},
	{"jumbofiles.com/", HostJumboFiles},
	{"movreel.com/", HostMovreel},
	{"billionuploads.com/", HostBillionUploads},
}

// HostOf reconnaît l'hébergeur d'une URL, HostDirect sinon.
func HostOf(rawURL string) Host {
	for _, m := range hostMarkers {
		if strings.Contains(rawURL, m.marker) {
			return m.host
		}
	}
	return HostDirect
}

// Part est un segment d'une source multi-part. PartNumber démarre à 1,
// sans trou: la résolution s'arrête au premier index manquant.
type Part struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Source est une origine de téléchargement/stream découverte sur la page
// miroir. Une source avec plus d'une part est dite "stacked".
type Source struct {
	Index int    `json:"index"`
	Host  Host   `json:"host"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Parts []Part `json:"parts,omitempty"`
}

func (s Source) Stacked() bool { return len(s.Parts) > 1 }

// Artifacts regroupe les métadonnées transitoires de la vidéo courante,
// écrasées en bloc à chaque chargement de page miroir.
type Artifacts struct {
	VideoName   string `json:"videoName"`
	Description string `json:"description,omitempty"`
	Poster      string `json:"poster,omitempty"`
	MPAA        string `json:"mpaa,omitempty"`
	MediaPath   string `json:"mediaPath,omitempty"`
}
