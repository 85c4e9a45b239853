package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/go-resty/resty/v2"
)

// StorageService uploads to and links into one Supabase storage bucket.
type StorageService struct {
	client  *resty.Client
	baseURL string
	bucket  string
	anonKey string
	logger  log.Logger
}

func NewStorageService(baseURL, bucket, anonKey string, logger log.Logger) *StorageService {
	baseURL = strings.TrimRight(baseURL, "/")
	return &StorageService{
		client:  resty.New().SetBaseURL(baseURL).SetTimeout(time.Minute),
		baseURL: baseURL,
		bucket:  bucket,
		anonKey: anonKey,
		logger:  logger,
	}
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// Upload stores data under objectPath using the caller's access token.
func (s *StorageService) Upload(ctx context.Context, accessToken, objectPath, contentType string, data []byte) error {
	if s.baseURL == "" {
		return apperr.ServiceConfiguration("storage is not configured", nil)
	}
	if len(data) == 0 {
		return apperr.Validation("File is empty", map[string]string{"cv": "CV file is empty"})
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if accessToken == "" {
		accessToken = s.anonKey
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("apikey", s.anonKey).
		SetHeader("Authorization", "Bearer "+accessToken).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "false").
		SetBody(bytes.NewReader(data)).
		Post(fmt.Sprintf("/storage/v1/object/%s/%s", s.bucket, escapePath(objectPath)))
	if err != nil {
		return apperr.Network("could not reach storage", err)
	}
	switch {
	case resp.StatusCode() == 409:
		return apperr.Conflict("A file with this name already exists")
	case resp.IsError():
		return apperr.Service(fmt.Sprintf("Upload failed with status %d: %s", resp.StatusCode(), resp.String()), resp.StatusCode())
	}
	return nil
}

// NormalizeObjectPath strips leading slashes and a bucket prefix.
func (s *StorageService) NormalizeObjectPath(p string) string {
	p = strings.TrimLeft(p, "/")
	return strings.TrimPrefix(p, s.bucket+"/")
}

func (s *StorageService) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, escapePath(s.NormalizeObjectPath(objectPath)))
}

// Reachable reports whether a HEAD request on u succeeds.
func (s *StorageService) Reachable(ctx context.Context, u string) bool {
	resp, err := s.client.R().SetContext(ctx).Head(u)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", u).Msg("HEAD failed")
		return false
	}
	return resp.IsSuccess()
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.]`)
var whitespace = regexp.MustCompile(`\s+`)

// CVObjectName builds "<student_id>.<safe_name>.<unix_ms>.<ext>".
func CVObjectName(studentID, studentName, filename string, at time.Time) string {
	safe := whitespace.ReplaceAllString(studentName, "_")
	safe = strings.ToLower(unsafeChars.ReplaceAllString(safe, ""))
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = filename
	}
	return fmt.Sprintf("%s.%s.%d.%s", studentID, safe, at.UnixMilli(), ext)
}
