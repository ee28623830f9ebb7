package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/forgehttp/forge/internal/errdef"
)

type Format string

const (
	FormatTOML   Format = "toml"
	FormatJSON   Format = "json"
	FormatDotEnv Format = "dotenv"
)

type Settings struct {
	Theme              string          `json:"theme"               toml:"theme"`
	DefaultEnvironment string          `json:"default_environment" toml:"default_environment"`
	EnvironmentsFile   string          `json:"environments_file"   toml:"environments_file"`
	HTTP               HTTPSettings    `json:"http"                toml:"http"`
	History            HistorySettings `json:"history"             toml:"history"`
}

type Handle struct {
	Path   string
	Format Format
}

func DefaultSettings() Settings {
	return Settings{
		HTTP:    DefaultHTTPSettings(),
		History: DefaultHistorySettings(),
	}
}

func NormaliseSettings(in Settings) Settings {
	out := in
	out.Theme = strings.TrimSpace(in.Theme)
	out.DefaultEnvironment = strings.TrimSpace(in.DefaultEnvironment)
	out.EnvironmentsFile = strings.TrimSpace(in.EnvironmentsFile)
	out.HTTP = NormaliseHTTPSettings(in.HTTP)
	out.History = NormaliseHistorySettings(in.History)
	return out
}

// LoadSettings tries settings.toml, then settings.json. Parse errors fail
// immediately; a missing file moves on to the next candidate. With neither
// present the defaults come back with a TOML handle for a later save.
func LoadSettings() (Settings, Handle, error) {
	dir := Dir()
	candidates := []Handle{
		{Path: filepath.Join(dir, "settings.toml"), Format: FormatTOML},
		{Path: filepath.Join(dir, "settings.json"), Format: FormatJSON},
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				errdef.Wrap(errdef.CodeFilesystem, err, "read settings %q", candidate.Path),
			)
			continue
		}

		settings, err := decodeSettings(data, candidate.Format)
		if err != nil {
			return Settings{}, Handle{}, errdef.Wrap(
				errdef.CodeConfig,
				err,
				"parse settings %q",
				candidate.Path,
			)
		}
		return NormaliseSettings(settings), candidate, nil
	}

	if accumulated != nil {
		return Settings{}, Handle{}, accumulated
	}
	return DefaultSettings(), candidates[0], nil
}

// decodeSettings starts from the defaults so keys absent from the file keep
// their default values.
func decodeSettings(data []byte, format Format) (Settings, error) {
	settings := DefaultSettings()
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, err
		}
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&settings); err != nil {
			return Settings{}, err
		}
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", format)
	}
	return settings, nil
}

func SaveSettings(settings Settings, handle Handle) error {
	settings = NormaliseSettings(settings)
	path := handle.Path
	format := handle.Format
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if format == "" {
		format = FormatTOML
	}

	data, err := encode(settings, format)
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "encode settings")
	}
	if err := writeFile(path, data); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write settings %q", path)
	}
	return nil
}

func encode(v any, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(v)
	case FormatJSON:
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return nil, err
		}
		return buffer.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	return writeFileAtomic(path, data, 0o644)
}

// writeFileAtomic writes a sibling temp file and renames it over path, so
// readers (and the file watcher) never observe a partial file.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".forge-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Join(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
