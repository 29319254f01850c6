package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Compile-time check
var _ SiteUseCase = (*siteUC)(nil)

type SiteUseCase interface {
	Create(ctx context.Context, title, iframeURL, merchantLink string) (*model.Site, error)
	List(ctx context.Context) ([]model.Site, error)
	// Delete removes the site and, with it, every family of codes issued
	// against it.
	Delete(ctx context.Context, title string) error
}

type siteUC struct {
	access repository.AccessRepository
	log    *zerolog.Logger
}

func NewSiteUseCase(access repository.AccessRepository, logger *zerolog.Logger) *siteUC {
	return &siteUC{access: access, log: logger}
}

func (uc *siteUC) Create(ctx context.Context, title, iframeURL, merchantLink string) (*model.Site, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(iframeURL) == "" {
		return nil, fmt.Errorf("title and iframe_url are required: %w", domain.ErrInvalidArgument)
	}
	site := &model.Site{Title: title, IframeURL: iframeURL, MerchantLink: merchantLink}
	if err := uc.access.SaveSite(ctx, site); err != nil {
		return nil, err
	}
	uc.log.Info().Str("site", title).Msg("site registered")
	return site, nil
}

func (uc *siteUC) List(ctx context.Context) ([]model.Site, error) {
	return uc.access.ListSites(ctx)
}

func (uc *siteUC) Delete(ctx context.Context, title string) error {
	if err := uc.access.DeleteSite(ctx, title); err != nil {
		return err
	}
	uc.log.Info().Str("site", title).Msg("site and its code families purged")
	return nil
}
