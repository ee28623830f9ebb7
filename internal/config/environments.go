package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/vars"
)

type environmentsFile struct {
	Environments []rawEnvironment `json:"environments" toml:"environments"`
}

type rawEnvironment struct {
	ID        string        `json:"id"        toml:"id"`
	Name      string        `json:"name"      toml:"name"`
	Color     string        `json:"color"     toml:"color"`
	Variables []rawVariable `json:"variables" toml:"variables"`
}

// rawVariable leaves Enabled as a pointer so a missing key means enabled.
type rawVariable struct {
	Key         string       `json:"key"         toml:"key"`
	Value       string       `json:"value"       toml:"value"`
	Type        vars.VarType `json:"type"        toml:"type"`
	Enabled     *bool        `json:"enabled"     toml:"enabled"`
	Description string       `json:"description" toml:"description"`
}

type savedEnvironments struct {
	Environments []vars.Environment `json:"environments" toml:"environments"`
}

// EnvironmentsPath picks the environments file: an explicit path wins, then
// environments.toml and environments.json in Dir(). The TOML path comes back
// when nothing exists yet.
func EnvironmentsPath(explicit string) Handle {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return Handle{Path: explicit, Format: formatForPath(explicit)}
	}
	dir := Dir()
	candidates := []Handle{
		{Path: filepath.Join(dir, "environments.toml"), Format: FormatTOML},
		{Path: filepath.Join(dir, "environments.json"), Format: FormatJSON},
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate.Path); err == nil {
			return candidate
		}
	}
	return candidates[0]
}

func formatForPath(path string) Format {
	switch {
	case vars.IsDotEnvPath(path):
		return FormatDotEnv
	case strings.EqualFold(filepath.Ext(path), ".json"):
		return FormatJSON
	default:
		return FormatTOML
	}
}

// LoadEnvironments reads the file behind handle. A missing file is an empty
// set, not an error.
func LoadEnvironments(handle Handle) (vars.EnvironmentSet, error) {
	if handle.Format == FormatDotEnv {
		env, err := vars.LoadDotEnv(handle.Path)
		if err != nil {
			return nil, err
		}
		return vars.EnvironmentSet{*env}, nil
	}

	data, err := os.ReadFile(handle.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read environments %q", handle.Path)
	}
	set, err := DecodeEnvironments(data, handle.Format)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeConfig, err, "parse environments %q", handle.Path)
	}
	return set, nil
}

func DecodeEnvironments(data []byte, format Format) (vars.EnvironmentSet, error) {
	var file environmentsFile
	switch format {
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&file); err != nil {
			return nil, err
		}
	default:
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, err
		}
	}

	set := make(vars.EnvironmentSet, 0, len(file.Environments))
	for i, raw := range file.Environments {
		env := vars.NewEnvironment(raw.Name)
		if raw.ID != "" {
			env.ID = raw.ID
		}
		if raw.Color != "" {
			env.Color = raw.Color
		}
		for j, rv := range raw.Variables {
			key := strings.TrimSpace(rv.Key)
			if key == "" {
				return nil, errdef.New(
					errdef.CodeConfig,
					"environment %d (%s): variable %d has no key",
					i+1,
					env.Name,
					j+1,
				)
			}
			typ := rv.Type
			if typ == "" {
				typ = vars.VarText
			}
			env.Variables = append(env.Variables, vars.Variable{
				Key:         key,
				Value:       rv.Value,
				Type:        typ,
				Enabled:     rv.Enabled == nil || *rv.Enabled,
				Description: rv.Description,
			})
		}
		set = append(set, *env)
	}
	return set, nil
}

func SaveEnvironments(set vars.EnvironmentSet, handle Handle) error {
	if handle.Format == FormatDotEnv {
		return errdef.New(errdef.CodeConfig, "cannot save environments to dotenv file %q", handle.Path)
	}
	if handle.Path == "" {
		handle = EnvironmentsPath("")
	}
	payload := savedEnvironments{Environments: []vars.Environment(set)}
	if payload.Environments == nil {
		payload.Environments = []vars.Environment{}
	}
	data, err := encode(payload, handle.Format)
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "encode environments")
	}
	if err := writeFile(handle.Path, data); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write environments %q", handle.Path)
	}
	return nil
}
