package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ownership-cli/internal/model"
)

// RawSnapshot holds the three record sets as returned by the Table API.
// Audit contains both CI audit rows and tagged user-profile audit rows.
type RawSnapshot struct {
	CIs   []Record `json:"cis" yaml:"cis"`
	Audit []Record `json:"audit" yaml:"audit"`
	Users []Record `json:"users" yaml:"users"`
}

// Canonicalize converts a raw snapshot into the model consumed by the engine.
func Canonicalize(raw RawSnapshot) model.Snapshot {
	users := Users(raw.Users)
	return model.Snapshot{
		CIs:   CIs(raw.CIs, NewDirectory(users)),
		Audit: AuditRecords(raw.Audit),
		Users: users,
	}
}

// LoadSnapshot reads a raw snapshot from a .json, .yaml, or .yml file.
func LoadSnapshot(path string) (*RawSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read snapshot %s", path)
	}

	var raw RawSnapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrap(err, "ingest: parse yaml snapshot")
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrap(err, "ingest: parse json snapshot")
		}
	}
	return &raw, nil
}

// WriteSnapshot writes a raw snapshot as indented JSON, or YAML when the path
// ends in .yaml/.yml.
func WriteSnapshot(path string, raw *RawSnapshot) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(raw)
	default:
		data, err = json.MarshalIndent(raw, "", "  ")
	}
	if err != nil {
		return eris.Wrap(err, "ingest: encode snapshot")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "ingest: write snapshot %s", path)
}
