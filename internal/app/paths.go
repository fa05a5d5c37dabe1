package app

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/icedl/icedl/internal/domain"
)

var reUnsafePath = regexp.MustCompile(`[^-a-zA-Z0-9_.()\\/ ]+`)

// SanitizeFilename retire tout caractère refusé par les systèmes de
// fichiers Windows; les séparateurs de chemin sont conservés.
func SanitizeFilename(name string) string {
	return reUnsafePath.ReplaceAllString(name, "")
}

// PlanPath calcule la destination d'un téléchargement. Les sources en
// plusieurs parts reçoivent un suffixe " partN" pour que le lecteur les
// empile; l'extension est toujours .avi.
func PlanPath(settings domain.Settings, sourceName, videoName, mediaPath string) (string, error) {
	if settings.DownloadDir == "" {
		return "", &CodedError{Code: "invalid_params", Message: "download folder is not set"}
	}

	name := videoName
	if strings.Contains(sourceName, "Part") {
		fields := strings.Fields(sourceName)
		name += " part" + fields[len(fields)-1]
	}
	name += ".avi"

	if settings.UseMediaDirs && mediaPath != "" {
		return filepath.Join(settings.DownloadDir, SanitizeFilename(mediaPath), SanitizeFilename(name)), nil
	}
	return filepath.Join(settings.DownloadDir, SanitizeFilename(name)), nil
}
