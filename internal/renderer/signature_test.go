package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := "s3cret"
	body := []byte(`{"id":"rnd-1","status":"succeeded"}`)
	sig := Sign(secret, body)

	assert.True(t, VerifySignature(secret, body, sig))
	assert.True(t, VerifySignature(secret, body, "sha256="+sig), "prefixed form accepted")
	assert.True(t, VerifySignature(secret, body, "  "+sig+" "), "surrounding whitespace ignored")

	assert.False(t, VerifySignature(secret, body, ""))
	assert.False(t, VerifySignature(secret, body, "deadbeef"))
	assert.False(t, VerifySignature("other-secret", body, sig))
	assert.False(t, VerifySignature(secret, []byte(`tampered`), sig))
}

func TestMetadataRoundTrip(t *testing.T) {
	raw, err := EncodeMetadata(JobMetadata{JobID: "job_1", BusinessID: "D100", PostNumber: 42})
	require.NoError(t, err)

	meta, err := ParseMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, "job_1", meta.JobID)
	assert.Equal(t, "D100", meta.BusinessID)
	assert.Equal(t, 42, meta.PostNumber)
}

func TestParseMetadataErrors(t *testing.T) {
	_, err := ParseMetadata("")
	assert.Error(t, err)

	_, err = ParseMetadata("not json")
	assert.Error(t, err)

	_, err = ParseMetadata(`{"businessId":"D100"}`)
	assert.Error(t, err, "missing jobId rejected")
}
