package source

import (
	"context"
	"crypto/sha256"

	"github.com/ASHISH26940/suggestd/internal/persistence"
	"github.com/ASHISH26940/suggestd/internal/store"
	"github.com/pkg/errors"
)

// Dataset is one fully decoded payload.
type Dataset struct {
	Records  []store.Record
	Checksum [sha256.Size]byte
	Location string
}

// Loader fetches and decodes the dataset from a Source.
type Loader struct {
	src    Source
	format persistence.Format
}

// NewLoader creates a Loader. An empty format is detected from the source name.
func NewLoader(src Source, format persistence.Format) *Loader {
	return &Loader{src: src, format: format}
}

// Location returns where the loader reads from.
func (l *Loader) Location() string {
	return l.src.String()
}

// Load fetches, decompresses and decodes the whole dataset.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	raw, err := l.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	data, name, err := Decompress(l.src.Name(), raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", l.src)
	}

	format := l.format
	if format == "" {
		format = persistence.DetectFormat(name)
	}
	records, err := persistence.Decode(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", l.src)
	}

	return &Dataset{
		Records:  records,
		Checksum: sha256.Sum256(raw),
		Location: l.src.String(),
	}, nil
}
