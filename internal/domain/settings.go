package domain

type Settings struct {
	// Dossier racine des téléchargements (et des fichiers sentinelles).
	DownloadDir string `json:"downloadDir"`

	// Présentation des sources multi-part comme une seule entrée.
	StackMultiPart bool `json:"stackMultiPart"`

	// Aplatir le niveau qualité quand une seule catégorie existe.
	FlattenSourceType bool `json:"flattenSourceType"`

	// Arborescence TV Shows/<show>/… et Movies/<titre> sous DownloadDir.
	UseMediaDirs bool `json:"useMediaDirs"`

	// Supprimer les fichiers partiels après échec/annulation.
	DeleteIncomplete bool `json:"deleteIncomplete"`

	// Index dans WatchedThresholds (0 → 70%, 1 → 80%, 2 → 90%).
	WatchedPercentIndex int `json:"watchedPercentIndex"`

	// Secondes de pré-buffer avant de jouer un fichier en cours d'écriture.
	BufferDelaySeconds int `json:"bufferDelaySeconds"`
}

func DefaultSettings() Settings {
	return Settings{
		DownloadDir:         "downloads",
		StackMultiPart:      true,
		FlattenSourceType:   true,
		UseMediaDirs:        false,
		DeleteIncomplete:    true,
		WatchedPercentIndex: 1,
		BufferDelaySeconds:  5,
	}
}
