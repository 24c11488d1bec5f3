package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

const dataFileName = "cubetime_data.json"

// JSONBackend stores the whole data set as one JSON document, replaced
// atomically on every save.
type JSONBackend struct {
	dataDir string
	logger  *slog.Logger
}

// NewJSONBackend creates a backend writing to dataDir.
func NewJSONBackend(dataDir string, logger *slog.Logger) *JSONBackend {
	return &JSONBackend{dataDir: dataDir, logger: logger}
}

func (b *JSONBackend) Name() string {
	return "json"
}

func (b *JSONBackend) path() string {
	return filepath.Join(b.dataDir, dataFileName)
}

// Load reads data from disk. A missing or unreadable file yields empty data.
func (b *JSONBackend) Load() (*Data, error) {
	filePath := b.path()

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			b.logger.Info("no existing data file, starting fresh", "path", filePath)
			return newEmptyData(), nil
		}
		return nil, err
	}
	defer file.Close()

	var data Data
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		b.logger.Warn("failed to decode data file, starting fresh", "error", err)
		return newEmptyData(), nil
	}

	if data.Version > currentVersion {
		b.logger.Warn("data file version is newer than supported, starting fresh",
			"file_version", data.Version,
			"supported_version", currentVersion,
		)
		return newEmptyData(), nil
	}

	if data.Sessions == nil {
		data.Sessions = []SessionData{}
	}

	return &data, nil
}

// Save writes data to a temp file and renames it into place.
func (b *JSONBackend) Save(data *Data) error {
	if err := os.MkdirAll(b.dataDir, 0755); err != nil {
		return err
	}

	filePath := b.path()
	tempPath := filePath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		os.Remove(tempPath)
		return err
	}

	return nil
}

func (b *JSONBackend) Close() error {
	return nil
}
