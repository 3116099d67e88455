package store

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Key is where the named snapshot's export is uploaded.
func (s *Store) S3Key(name string) string {
	return path.Join(s.config.S3Prefix, name+".json")
}

// UploadExport uploads the named snapshot's export to the configured bucket
// and returns its key. With no bucket configured it does nothing and returns "".
// The AWS SDK reads credentials and region from the environment.
func (s *Store) UploadExport(ctx context.Context, name string) (string, error) {
	if s.config.S3Bucket == "" {
		s.logger.Warn("No S3 bucket configured, skipping snapshot upload", "name", name)
		return "", nil
	}
	data, err := s.Export(name)
	if err != nil {
		return "", err
	}
	key := s.S3Key(name)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sess := session.Must(session.NewSession())
	uploader := s3manager.NewUploader(sess)
	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == request.CanceledErrorCode {
			s.logger.Error("Snapshot upload canceled", "name", name, "error", err)
		} else {
			s.logger.Error("Failed to upload snapshot", "name", name, "error", err)
		}
		return "", err
	}
	s.logger.Info("Uploaded snapshot to S3", "bucket", s.config.S3Bucket, "key", key)
	return key, nil
}
