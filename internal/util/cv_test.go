package util

import (
	"testing"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectCVRejects(t *testing.T) {
	cases := map[string]struct {
		name string
		data []byte
		max  int64
	}{
		"extension":  {"cv.exe", []byte("MZ"), 0},
		"empty":      {"cv.docx", nil, 0},
		"too large":  {"cv.txt", make([]byte, 2048), 1024},
		"broken pdf": {"cv.pdf", []byte("definitely not a pdf"), 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := InspectCV(tc.name, tc.data, tc.max)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Contains(t, e.Fields, "cv")
		})
	}
}

func TestInspectCVAcceptsDocuments(t *testing.T) {
	info, err := InspectCV("Resume.DOCX", []byte("PK..."), 10<<20)
	require.NoError(t, err)
	assert.Equal(t, ".docx", info.Ext)
	assert.Zero(t, info.Pages)

	info, err = InspectCV("photo.jpeg", []byte{0xff, 0xd8}, 10<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", info.ContentType)
}
