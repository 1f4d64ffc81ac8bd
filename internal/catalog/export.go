package catalog

import (
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ExportFile is the flat-file format for bulk podcast export and import.
// Episodes are deliberately excluded: they are feed-derived and repopulate on
// the next refresh of each podcast's feed URL.
type ExportFile struct {
	Podcasts []Podcast `yaml:"podcasts"`
}

// EncodeExport serialises podcasts into the YAML export format.
func EncodeExport(podcasts []Podcast) ([]byte, error) {
	data, err := yaml.Marshal(ExportFile{Podcasts: podcasts})
	if err != nil {
		return nil, eris.Wrap(err, "encoding export file")
	}
	return data, nil
}

// DecodeExport parses the YAML export format.
func DecodeExport(data []byte) ([]Podcast, error) {
	var file ExportFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "decoding export file")
	}
	return file.Podcasts, nil
}
