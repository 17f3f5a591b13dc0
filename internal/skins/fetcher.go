package skins

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/andcoolsystems/eldraxis/internal/mojang"
)

// Downloader retrieves one texture file.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// TexturePayload is the raw texture data of one account.
type TexturePayload struct {
	Skin []byte
	// Cape is empty when the account has none or the cape could not be fetched.
	Cape []byte
}

// TextureFetcher downloads the textures listed in a profile. The skin is
// mandatory; the cape is best effort.
type TextureFetcher struct {
	downloader Downloader
	log        *zap.Logger
}

// NewTextureFetcher builds a fetcher around d.
func NewTextureFetcher(d Downloader, log *zap.Logger) *TextureFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &TextureFetcher{downloader: d, log: log}
}

// Fetch downloads the skin and, when advertised, the cape. Skin failures are
// terminal and reported as ErrUpstream; a failed cape is logged and dropped.
func (f *TextureFetcher) Fetch(ctx context.Context, t mojang.Textures) (*TexturePayload, error) {
	if t.SkinURL == "" {
		return nil, fmt.Errorf("%w: profile has no skin texture", ErrDecode)
	}

	skin, err := f.downloader.Download(ctx, t.SkinURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, fmt.Errorf("fetch skin: %w", err)
	}
	if len(skin) == 0 {
		return nil, fmt.Errorf("fetch skin: %w: empty body", ErrUpstream)
	}

	payload := &TexturePayload{Skin: skin}
	if !t.HasCape() {
		return payload, nil
	}

	cape, err := f.downloader.Download(ctx, t.CapeURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.log.Warn("cape download failed, continuing without cape",
			zap.String("url", t.CapeURL),
			zap.Error(err),
		)
		return payload, nil
	}
	payload.Cape = cape
	return payload, nil
}
