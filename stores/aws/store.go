package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"tshirt-studio/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type s3Store struct {
	s3Client s3API
	bucket   string
	now      func() time.Time
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName)
}

func newStore(client s3API, bucketName string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucketName, now: time.Now}
}

func (s *s3Store) designKey(ownerID, designID string) (string, error) {
	for _, part := range []string{ownerID, designID} {
		if part == "" || part == "." || part == ".." || path.Base(part) != part {
			return "", fmt.Errorf("invalid id %q: must not be a path", part)
		}
	}
	return path.Join(ownerID, designID+".json"), nil
}

func (s *s3Store) read(ctx context.Context, key string) (*core.Design, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read design data: %w", err)
	}
	var d core.Design
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal design data: %w", err)
	}
	return &d, nil
}

func (s *s3Store) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	if _, err := s.designKey(ownerID, "x"); err != nil {
		return nil, err
	}
	log := logrus.WithField("user_id", ownerID)

	designs := []*core.Design{}
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(ownerID + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list designs for user %s: %w", ownerID, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			d, err := s.read(ctx, key)
			if err != nil {
				log.WithError(err).Warnf("Failed to read design %s, skipping", key)
				continue
			}
			d.OwnerUserID = ownerID
			d.CanvasDocument = core.CanvasDocument{}
			designs = append(designs, d)
		}
	}
	sort.Slice(designs, func(i, j int) bool { return designs[i].UpdatedAt.After(designs[j].UpdatedAt) })

	log.Infof("Listed %d designs", len(designs))
	return designs, nil
}

func (s *s3Store) Get(ctx context.Context, ownerID, designID string) (*core.Design, error) {
	key, err := s.designKey(ownerID, designID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID})

	d, err := s.read(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.Warn("Design not found for user")
			return nil, fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to get design")
		return nil, fmt.Errorf("failed to get design %s: %w", designID, err)
	}
	d.OwnerUserID = ownerID

	log.Info("Design retrieved successfully")
	return d, nil
}

func (s *s3Store) Save(ctx context.Context, design *core.Design) (bool, error) {
	key, err := s.designKey(design.OwnerUserID, design.DesignID)
	if err != nil {
		return false, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": design.OwnerUserID, "design_id": design.DesignID})

	now := s.now().UTC()
	existing, err := s.read(ctx, key)
	switch {
	case err == nil:
		design.CreatedAt = existing.CreatedAt
	case errors.Is(err, core.ErrNotFound):
		design.CreatedAt = now
	default:
		return false, fmt.Errorf("failed to check design %s: %w", design.DesignID, err)
	}
	design.UpdatedAt = now

	data, err := json.Marshal(design)
	if err != nil {
		return false, fmt.Errorf("failed to marshal design: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.WithError(err).Error("Failed to save design")
		return false, fmt.Errorf("failed to save design %s: %w", design.DesignID, err)
	}

	log.Info("Design saved successfully")
	return existing == nil, nil
}

func (s *s3Store) Delete(ctx context.Context, ownerID, designID string) error {
	key, err := s.designKey(ownerID, designID)
	if err != nil {
		return err
	}
	// DeleteObject succeeds for missing keys, so check first.
	if _, err := s.read(ctx, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
		}
		return err
	}

	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete design %s: %w", designID, err)
	}
	logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID}).Info("Design deleted successfully")
	return nil
}
