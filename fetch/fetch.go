// Package fetch loads disk image bytes from the local filesystem or an S3
// bucket, unpacking gzip and zstd compressed images on the way.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/paleotronic/diskprobe/loggy"
)

// MaxImageSize bounds how much a single image may expand to. The largest
// image the identifier understands is a 32MB ProDOS volume plus header.
const MaxImageSize = 64 << 20

var (
	ErrNotFound = errors.New("image not found")
	ErrTooLarge = errors.New("image too large")
)

var (
	gzipMagic = []byte{0x1F, 0x8B}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// ObjectGetter is the part of the S3 client the fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds a path-style client. Without explicit keys the SDK's
// default credential chain is used.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// Fetcher resolves image locations. S3 may be nil, in which case s3://
// locations fail.
type Fetcher struct {
	S3 ObjectGetter
}

// Fetch returns the image name (compression suffix removed) and its
// uncompressed bytes.
func (f *Fetcher) Fetch(ctx context.Context, loc string) (string, []byte, error) {
	var (
		raw []byte
		err error
	)
	if bucket, key, ok := ParseS3(loc); ok {
		raw, err = f.getObject(ctx, bucket, key)
	} else {
		raw, err = readFile(loc)
	}
	if err != nil {
		return "", nil, err
	}

	name := path.Base(strings.ReplaceAll(loc, "\\", "/"))
	data, packed, err := Decompress(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", loc, err)
	}
	if packed {
		name = TrimCompression(name)
		loggy.Get(0).Debugf("fetch: %s expanded %d -> %d bytes", loc, len(raw), len(data))
	}
	return name, data, nil
}

func readFile(name string) ([]byte, error) {
	fi, err := os.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	if fi.Size() > MaxImageSize {
		return nil, fmt.Errorf("%s: %w", name, ErrTooLarge)
	}
	return os.ReadFile(name)
}

func (f *Fetcher) getObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if f.S3 == nil {
		return nil, fmt.Errorf("s3://%s/%s: no s3 client configured", bucket, key)
	}
	out, err := f.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()
	return readLimited(out.Body)
}

// ParseS3 splits an s3://bucket/key location.
func ParseS3(loc string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(loc, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Decompress unpacks gzip or zstd data, recognised by magic number. Anything
// else is returned unchanged with packed false.
func Decompress(data []byte) (out []byte, packed bool, err error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, true, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err = readLimited(zr)
		return out, true, err
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(MaxImageSize))
		if err != nil {
			return nil, true, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		out, err = readLimited(dec)
		return out, true, err
	}
	return data, false, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// TrimCompression drops a trailing .gz or .zst so the inner extension can
// steer identification.
func TrimCompression(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".gz", ".zst"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
