package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/maison-panier/api/internal/domain"
	pstorage "github.com/maison-panier/api/internal/platform/storage"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errAssetRepositoryRequired = errors.New("asset service: repository is required")
	errAssetClockRequired      = errors.New("asset service: clock is required")
)

// ErrAssetInvalidInput indicates the caller supplied invalid input.
var ErrAssetInvalidInput = errors.New("asset service: invalid input")

// ErrAssetNotFound indicates the requested asset does not exist.
var ErrAssetNotFound = errors.New("asset service: not found")

// ErrAssetUnavailable indicates the storage backend cannot fulfil the request.
var ErrAssetUnavailable = errors.New("asset service: unavailable")

const (
	defaultSignedURLTTL = 15 * time.Minute
	maxAssetSizeBytes   = 20 << 20
)

var allowedAssetKinds = map[string][]string{
	"product-image": {"image/jpeg", "image/png", "image/webp", "image/avif"},
	"page-media":    {"image/jpeg", "image/png", "image/webp", "image/gif", "video/mp4"},
}

// AssetServiceDeps wires the signed-URL issuer and ambient dependencies.
type AssetServiceDeps struct {
	Repository  repositories.AssetRepository
	Clock       func() time.Time
	TTL         time.Duration
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type assetService struct {
	repo   repositories.AssetRepository
	now    func() time.Time
	ttl    time.Duration
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewAssetService constructs an AssetService enforcing dependency validation.
func NewAssetService(deps AssetServiceDeps) (AssetService, error) {
	if deps.Repository == nil {
		return nil, errAssetRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errAssetClockRequired
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &assetService{
		repo:   deps.Repository,
		now:    func() time.Time { return deps.Clock().UTC() },
		ttl:    ttl,
		newID:  idGen,
		logger: logger,
	}, nil
}

// IssueSignedUpload validates the upload request and returns a time-limited
// signed PUT URL plus the asset record the object will land under.
func (s *assetService) IssueSignedUpload(ctx context.Context, cmd SignedUploadCommand) (SignedAssetResponse, error) {
	if s == nil || s.repo == nil {
		return SignedAssetResponse{}, ErrAssetUnavailable
	}

	actor := strings.TrimSpace(cmd.ActorID)
	if actor == "" {
		return SignedAssetResponse{}, ErrAssetInvalidInput
	}

	kind := strings.ToLower(strings.TrimSpace(cmd.Kind))
	allowed, ok := allowedAssetKinds[kind]
	if !ok {
		return SignedAssetResponse{}, fmt.Errorf("%w: asset kind %q not allowed", ErrAssetInvalidInput, cmd.Kind)
	}

	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	if !contentTypeAllowed(contentType, allowed) {
		return SignedAssetResponse{}, fmt.Errorf("%w: content_type %q not allowed for kind %q", ErrAssetInvalidInput, contentType, kind)
	}

	if cmd.SizeBytes <= 0 || cmd.SizeBytes > maxAssetSizeBytes {
		return SignedAssetResponse{}, fmt.Errorf("%w: size must be between 1 and %d bytes", ErrAssetInvalidInput, maxAssetSizeBytes)
	}

	fileName := sanitizeFileName(cmd.FileName)
	if fileName == "" {
		return SignedAssetResponse{}, fmt.Errorf("%w: file name is required", ErrAssetInvalidInput)
	}

	now := s.now()
	assetID := s.newID()
	objectPath, err := pstorage.BuildMediaObjectPath(kind, now, assetID, fileName)
	if err != nil {
		return SignedAssetResponse{}, fmt.Errorf("%w: %v", ErrAssetInvalidInput, err)
	}
	asset := domain.MediaAsset{
		ID:          assetID,
		Kind:        kind,
		StoragePath: objectPath,
		ContentType: contentType,
		SizeBytes:   cmd.SizeBytes,
		UploadedBy:  actor,
		CreatedAt:   now,
	}

	resp, err := s.repo.IssueUpload(ctx, asset, now.Add(s.ttl))
	if err != nil {
		s.logger(ctx, "assets.upload_sign_failed", map[string]any{
			"kind":  kind,
			"error": err.Error(),
		})
		return SignedAssetResponse{}, s.translateRepoError(err)
	}
	return resp, nil
}

// IssueSignedDownload returns a time-limited signed GET URL for an existing asset.
func (s *assetService) IssueSignedDownload(ctx context.Context, cmd SignedDownloadCommand) (SignedAssetResponse, error) {
	if s == nil || s.repo == nil {
		return SignedAssetResponse{}, ErrAssetUnavailable
	}

	assetID := strings.TrimSpace(cmd.AssetID)
	if assetID == "" {
		return SignedAssetResponse{}, ErrAssetInvalidInput
	}

	resp, err := s.repo.IssueDownload(ctx, assetID, s.now().Add(s.ttl))
	if err != nil {
		return SignedAssetResponse{}, s.translateRepoError(err)
	}
	return resp, nil
}

func (s *assetService) translateRepoError(err error) error {
	return mapRepoError(err, ErrAssetNotFound, ErrAssetUnavailable, ErrAssetUnavailable)
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	if contentType == "" {
		return false
	}
	for _, candidate := range allowed {
		if contentType == candidate {
			return true
		}
	}
	return false
}

func sanitizeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}
