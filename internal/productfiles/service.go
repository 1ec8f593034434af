package productfiles

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type Service interface {
	Resolve(ctx context.Context, productID int64, size, color *string) ([]File, error)
}

type fileRepository interface {
	Resolve(ctx context.Context, productID int64, size, color *string) ([]models.ProductFile, error)
}

type urlSigner interface {
	SignedReadURL(object string, ttl time.Duration) (string, time.Time, error)
}

type ServiceParams struct {
	Repo fileRepository
	// Signer is optional; without it files are returned unsigned.
	Signer      urlSigner
	DownloadTTL time.Duration
	Logger      *logger.Logger
}

type service struct {
	repo   fileRepository
	signer urlSigner
	ttl    time.Duration
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product file repository required")
	}
	return &service{
		repo:   params.Repo,
		signer: params.Signer,
		ttl:    params.DownloadTTL,
		logg:   params.Logger,
	}, nil
}

func (s *service) Resolve(ctx context.Context, productID int64, size, color *string) ([]File, error) {
	if productID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive").
			WithDetails(map[string]any{"product_id": productID})
	}

	rows, err := s.repo.Resolve(ctx, productID, size, color)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve product files")
	}

	files := make([]File, 0, len(rows))
	for _, row := range rows {
		file := FromModel(row)
		if s.signer != nil {
			url, expires, err := s.signer.SignedReadURL(row.StoragePath, s.ttl)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign product file download").
					WithDetails(map[string]any{"file_id": row.ID})
			}
			file.DownloadURL = &url
			file.DownloadExpiresAt = &expires
		}
		files = append(files, file)
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"product_id": productID,
			"files":      len(files),
		})
		s.logg.Debug(ctx, "product files resolved")
	}
	return files, nil
}
