package productfiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubSigner struct {
	objects []string
	ttl     time.Duration
	err     error
}

func (s *stubSigner) SignedReadURL(object string, ttl time.Duration) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.objects = append(s.objects, object)
	s.ttl = ttl
	return "https://signed.example/" + object, uploadedAt.Add(ttl), nil
}

type failingRepo struct{}

func (failingRepo) Resolve(context.Context, int64, *string, *string) ([]models.ProductFile, error) {
	return nil, errors.New("db down")
}

func TestNewServiceRequiresRepo(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestServiceResolveRejectsInvalidProduct(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: NewRepository(openTestDB(t))})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), 0, nil, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceResolveWithoutSigner(t *testing.T) {
	db := openTestDB(t)
	createFile(t, db, 1, str("M"), nil, "size-m.pdf", uploadedAt)
	createFile(t, db, 1, nil, nil, "generic.pdf", uploadedAt)

	svc, err := NewService(ServiceParams{Repo: NewRepository(db)})
	require.NoError(t, err)

	files, err := svc.Resolve(context.Background(), 1, str("M"), str("Red"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Generic())
	assert.Nil(t, files[0].DownloadURL)
}

func TestServiceResolveSignsDownloads(t *testing.T) {
	db := openTestDB(t)
	file := createFile(t, db, 6, nil, nil, "manual.pdf", uploadedAt)
	signer := &stubSigner{}

	svc, err := NewService(ServiceParams{Repo: NewRepository(db), Signer: signer, DownloadTTL: 5 * time.Minute})
	require.NoError(t, err)

	files, err := svc.Resolve(context.Background(), 6, nil, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotNil(t, files[0].DownloadURL)
	assert.Equal(t, "https://signed.example/"+file.StoragePath, *files[0].DownloadURL)
	require.NotNil(t, files[0].DownloadExpiresAt)
	assert.True(t, files[0].DownloadExpiresAt.Equal(uploadedAt.Add(5*time.Minute)))
	assert.Equal(t, []string{file.StoragePath}, signer.objects)
	assert.Equal(t, 5*time.Minute, signer.ttl)
}

func TestServiceResolveSurfacesDependencyFailures(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: failingRepo{}})
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), 1, nil, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	db := openTestDB(t)
	createFile(t, db, 7, nil, nil, "manual.pdf", uploadedAt)
	svc, err = NewService(ServiceParams{Repo: NewRepository(db), Signer: &stubSigner{err: errors.New("iam down")}})
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), 7, nil, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
