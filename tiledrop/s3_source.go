package tiledrop

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Source reads tiles stored as objects in a bucket, one object per tile.
type S3Source struct {
	s3Client      *s3manager.Downloader
	bucket        string
	requesterPays bool
	template      *PathTemplate
}

var _ TileSource = (*S3Source)(nil)

func NewS3Source(bucket string, requesterPays bool, template *PathTemplate) (*S3Source, error) {
	if bucket == "" {
		return nil, errors.New("Bucket name is required")
	}
	if template == nil {
		return nil, errors.New("Key template is required")
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}

	return &S3Source{
		s3Client:      s3manager.NewDownloader(sess),
		bucket:        bucket,
		requesterPays: requesterPays,
		template:      template,
	}, nil
}

func (x *S3Source) Key(addr TileAddress) string {
	return x.template.Expand(addr)
}

func (x *S3Source) GetTile(ctx context.Context, addr TileAddress) (*TileData, error) {
	if !addr.InPyramid() {
		return blankTile(addr), nil
	}

	buf := &aws.WriteAtBuffer{}
	input := &s3.GetObjectInput{
		Bucket: aws.String(x.bucket),
		Key:    aws.String(x.Key(addr)),
	}
	if x.requesterPays {
		input.RequestPayer = aws.String("requester")
	}

	if _, err := x.s3Client.DownloadWithContext(ctx, buf, input); err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return blankTile(addr), nil
		}
		return nil, fmt.Errorf("Unable to download item s3://%s/%s: %w", x.bucket, x.Key(addr), err)
	}

	return &TileData{Address: addr, Data: buf.Bytes()}, nil
}

func (x *S3Source) Close() error {
	return nil
}
