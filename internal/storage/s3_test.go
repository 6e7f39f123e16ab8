package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/"))
	assert.Equal(t, "acct.r2.cloudflarestorage.com", normalizeEndpoint("https://acct.r2.cloudflarestorage.com/bucket"))
	assert.Equal(t, "localhost:9000", normalizeEndpoint("localhost:9000"))
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://acct.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.us-west-2.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}

func TestGetURL(t *testing.T) {
	s := &S3Storage{publicURL: "https://cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/uploads/p1/Floor%20Plans.pdf", s.GetURL("uploads/p1/Floor Plans.pdf"))

	none := &S3Storage{}
	assert.Equal(t, "", none.GetURL("uploads/x.pdf"))
}
