package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	pstorage "github.com/maison-panier/api/internal/platform/storage"
	"github.com/maison-panier/api/internal/repositories"
)

const assetCollection = "mediaAssets"

// AssetRepository records upload metadata in Firestore and signs URLs
// against the Cloud Storage bucket holding the objects.
type AssetRepository struct {
	base    *pfirestore.BaseRepository[assetDocument]
	storage *pstorage.Client
	bucket  string
	clock   func() time.Time
}

// AssetRepositoryOption customises the repository behaviour.
type AssetRepositoryOption func(*AssetRepository)

// WithAssetRepositoryClock overrides the clock used by the repository.
func WithAssetRepositoryClock(clock func() time.Time) AssetRepositoryOption {
	return func(r *AssetRepository) {
		if clock != nil {
			r.clock = func() time.Time { return clock().UTC() }
		}
	}
}

// NewAssetRepository constructs a Firestore-backed asset repository.
func NewAssetRepository(provider *pfirestore.Provider, storageClient *pstorage.Client, bucket string, opts ...AssetRepositoryOption) (*AssetRepository, error) {
	if provider == nil {
		return nil, errors.New("asset repository: firestore provider is required")
	}
	if storageClient == nil {
		return nil, errors.New("asset repository: storage client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("asset repository: bucket is required")
	}

	repo := &AssetRepository{
		base:    pfirestore.NewBaseRepository[assetDocument](provider, assetCollection, nil, nil),
		storage: storageClient,
		bucket:  bucket,
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// IssueUpload stores the pending asset record and returns a signed PUT URL.
func (r *AssetRepository) IssueUpload(ctx context.Context, asset domain.MediaAsset, expiresAt time.Time) (domain.SignedAssetResponse, error) {
	if r == nil || r.base == nil || r.storage == nil {
		return domain.SignedAssetResponse{}, errors.New("asset repository: not initialised")
	}

	assetID := strings.TrimSpace(asset.ID)
	if assetID == "" {
		return domain.SignedAssetResponse{}, errors.New("asset repository: asset id is required")
	}
	objectPath := strings.TrimSpace(asset.StoragePath)
	if objectPath == "" {
		return domain.SignedAssetResponse{}, errors.New("asset repository: storage path is required")
	}

	now := r.clock()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return domain.SignedAssetResponse{}, errors.New("asset repository: expiry must be in the future")
	}

	signed, err := r.storage.SignedURL(ctx, r.bucket, objectPath, pstorage.SignedURLOptions{
		Upload: &pstorage.UploadOptions{
			Method:              "PUT",
			ContentType:         asset.ContentType,
			AllowedMethods:      []string{"PUT"},
			AllowedContentTypes: []string{asset.ContentType},
			MaxSize:             asset.SizeBytes,
			ExpiresIn:           ttl,
			AdditionalHeaders: map[string]string{
				"x-goog-meta-asset-id": assetID,
			},
		},
	})
	if err != nil {
		return domain.SignedAssetResponse{}, fmt.Errorf("asset repository: sign upload url: %w", err)
	}

	doc := assetDocument{
		Kind:        strings.TrimSpace(asset.Kind),
		Bucket:      r.bucket,
		ObjectPath:  objectPath,
		ContentType: strings.TrimSpace(asset.ContentType),
		SizeBytes:   asset.SizeBytes,
		UploadedBy:  strings.TrimSpace(asset.UploadedBy),
		ExpiresAt:   signed.ExpiresAt,
		CreatedAt:   now,
	}
	if !asset.CreatedAt.IsZero() {
		doc.CreatedAt = asset.CreatedAt.UTC()
	}

	if _, err := r.base.Set(ctx, assetID, doc); err != nil {
		return domain.SignedAssetResponse{}, err
	}

	return domain.SignedAssetResponse{
		AssetID:   assetID,
		URL:       signed.URL,
		Method:    signed.Method,
		ExpiresAt: signed.ExpiresAt,
		Headers:   signed.Headers,
	}, nil
}

// IssueDownload signs a GET URL for an existing asset.
func (r *AssetRepository) IssueDownload(ctx context.Context, assetID string, expiresAt time.Time) (domain.SignedAssetResponse, error) {
	if r == nil || r.base == nil || r.storage == nil {
		return domain.SignedAssetResponse{}, errors.New("asset repository: not initialised")
	}
	id := strings.TrimSpace(assetID)
	if id == "" {
		return domain.SignedAssetResponse{}, errors.New("asset repository: asset id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.SignedAssetResponse{}, err
	}

	now := r.clock()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return domain.SignedAssetResponse{}, errors.New("asset repository: expiry must be in the future")
	}

	signed, err := r.storage.SignedURL(ctx, doc.Data.Bucket, doc.Data.ObjectPath, pstorage.SignedURLOptions{
		Download: &pstorage.DownloadOptions{
			Method:         "GET",
			ExpiresIn:      ttl,
			ResponseType:   doc.Data.ContentType,
			AllowAnonymous: true,
		},
	})
	if err != nil {
		return domain.SignedAssetResponse{}, fmt.Errorf("asset repository: sign download url: %w", err)
	}

	return domain.SignedAssetResponse{
		AssetID:   doc.ID,
		URL:       signed.URL,
		Method:    signed.Method,
		ExpiresAt: signed.ExpiresAt,
		Headers:   signed.Headers,
	}, nil
}

type assetDocument struct {
	Kind        string    `firestore:"kind"`
	Bucket      string    `firestore:"bucket"`
	ObjectPath  string    `firestore:"objectPath"`
	ContentType string    `firestore:"contentType"`
	SizeBytes   int64     `firestore:"sizeBytes"`
	UploadedBy  string    `firestore:"uploadedBy,omitempty"`
	ExpiresAt   time.Time `firestore:"uploadExpiresAt"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

var _ repositories.AssetRepository = (*AssetRepository)(nil)
