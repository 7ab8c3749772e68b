package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"skillswap/internal/config"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/repository"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultUploadDir     = "uploads"
	DefaultAvatarMaxSize = 5 * 1024 * 1024
	AvatarSizePx         = 256
	AvatarWebPQuality    = 80

	// UploadURLPrefix is where the upload directory is served.
	UploadURLPrefix = "/uploads"
	profileSubdir   = "profiles"
)

// ProfileImageSetter persists the avatar URL on a user.
type ProfileImageSetter interface {
	SetProfileImage(ctx context.Context, userID uint, url string) (*models.User, error)
}

// AvatarService normalizes profile images to square WebP files on disk.
type AvatarService struct {
	uploads   repository.UploadRepository
	profiles  ProfileImageSetter
	uploadDir string
	maxBytes  int64
	now       func() time.Time
}

func NewAvatarService(uploads repository.UploadRepository, profiles ProfileImageSetter, cfg *config.Config) *AvatarService {
	dir := DefaultUploadDir
	maxBytes := int64(DefaultAvatarMaxSize)
	if cfg != nil {
		if cfg.UploadDir != "" {
			dir = cfg.UploadDir
		}
		if cfg.UploadMaxBytes > 0 {
			maxBytes = cfg.UploadMaxBytes
		}
	}
	return &AvatarService{uploads: uploads, profiles: profiles, uploadDir: dir, maxBytes: maxBytes, now: time.Now}
}

// UploadDir is the directory served under UploadURLPrefix.
func (s *AvatarService) UploadDir() string { return s.uploadDir }

// Upload replaces the user's profile image and returns the updated user.
func (s *AvatarService) Upload(ctx context.Context, userID uint, content []byte) (*models.User, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	square := resizeSquare(cropSquare(decoded), AvatarSizePx)
	encoded, err := encodeWebP(square, AvatarWebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	rel := path.Join(profileSubdir, uuid.NewString()+".webp")
	abs := filepath.Join(s.uploadDir, filepath.FromSlash(rel))
	if err := writeBytesToFile(abs, encoded); err != nil {
		return nil, models.NewInternalError(err)
	}

	record := &models.Upload{
		UserID:    userID,
		Path:      rel,
		Kind:      models.UploadKindProfile,
		SizeBytes: int64(len(encoded)),
	}
	if err := s.uploads.Create(ctx, record); err != nil {
		_ = os.Remove(abs)
		return nil, err
	}

	user, err := s.profiles.SetProfileImage(ctx, userID, UploadURLPrefix+"/"+rel)
	if err != nil {
		_ = os.Remove(abs)
		return nil, err
	}
	return user, nil
}

// CleanupOlderThan removes upload files and rows created before now-age.
// Missing files are not an error.
func (s *AvatarService) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	stale, err := s.uploads.ListOlderThan(ctx, s.now().Add(-age))
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]uint, 0, len(stale))
	for _, u := range stale {
		abs := filepath.Join(s.uploadDir, filepath.FromSlash(u.Path))
		if rmErr := os.Remove(abs); rmErr != nil && !os.IsNotExist(rmErr) {
			middleware.Logger.WarnContext(ctx, "remove upload failed",
				slog.String("path", u.Path), slog.String("error", rmErr.Error()))
			continue
		}
		ids = append(ids, u.ID)
	}
	if err := s.uploads.Delete(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func cropSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side <= 0 || (b.Dx() == side && b.Dy() == side) {
		return src
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeSquare(src image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func writeBytesToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
