package acoustid

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

var _ metadata.Identifier = (*Identifier)(nil)

// Identifier combines fpcalc and the lookup service. Every failure is logged
// at debug level and reported as no match.
type Identifier struct {
	fpcalc *Fpcalc
	client *Client
}

// NewIdentifier creates an identifier.
func NewIdentifier(fpcalc *Fpcalc, client *Client) *Identifier {
	return &Identifier{fpcalc: fpcalc, client: client}
}

// Identify returns the top match's AcoustID and its first recording id.
func (i *Identifier) Identify(ctx context.Context, path string) (string, string) {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	fp, err := i.fpcalc.Generate(ctx, path)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Fingerprint unavailable")
		return "", ""
	}

	matches, err := i.client.Lookup(ctx, fp)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Fingerprint lookup failed")
		return "", ""
	}

	top := matches[0]
	if len(top.Recordings) == 0 {
		logger.Debug().Str("acoustid", top.ID).Msg("Top fingerprint match has no recordings")
		return "", ""
	}

	logger.Debug().
		Str("acoustid", top.ID).
		Str("mbid", top.Recordings[0].ID).
		Float64("score", top.Score).
		Msg("Identified by fingerprint")
	return top.ID, top.Recordings[0].ID
}
