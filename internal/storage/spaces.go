package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// metaKey is the object metadata entry carrying the encoded record.
const metaKey = "Workoutboard-Meta"

// SpacesStorage stores static/<board>.html in an S3-compatible bucket
// (DigitalOcean Spaces in production).
type SpacesStorage struct {
	client s3iface.S3API
	bucket string
}

func NewSpacesStorage(endpoint, region, bucket, accessKey, secretKey string) (*SpacesStorage, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return NewSpacesStorageWithClient(s3.New(sess), bucket), nil
}

func NewSpacesStorageWithClient(client s3iface.S3API, bucket string) *SpacesStorage {
	return &SpacesStorage{client: client, bucket: bucket}
}

func (ss *SpacesStorage) Name() string { return "spaces" }

func objectKey(board model.Board) string { return "static/" + string(board) + ".html" }

func (ss *SpacesStorage) Save(ctx context.Context, board model.Board, a *model.Artifact) error {
	if err := checkBoard(board); err != nil {
		return err
	}
	meta, err := json.Marshal(newRecord(board, a))
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}

	_, err = ss.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(objectKey(board)),
		Body:        strings.NewReader(a.Content),
		ContentType: aws.String("text/html; charset=utf-8"),
		ACL:         aws.String("private"),
		Metadata:    map[string]*string{metaKey: aws.String(string(meta))},
	})
	if err != nil {
		log.Error().Err(err).Str("board", string(board)).Msg("Failed to upload static cache to Spaces")
		return fmt.Errorf("failed to upload to Spaces: %w", err)
	}
	return nil
}

func (ss *SpacesStorage) Load(ctx context.Context, board model.Board) (*model.Artifact, error) {
	if err := checkBoard(board); err != nil {
		return nil, err
	}
	out, err := ss.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(objectKey(board)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch from Spaces: %w", err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read Spaces object: %w", err)
	}

	var raw []byte
	for k, v := range out.Metadata {
		if strings.EqualFold(k, metaKey) && v != nil {
			raw = []byte(*v)
		}
	}
	return decodeRecord(raw, board, ss.Name()).artifact(string(content)), nil
}
