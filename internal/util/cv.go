package util

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/gen2brain/go-fitz"
)

var cvContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

type CVInfo struct {
	Ext         string
	ContentType string
	Pages       int
}

// InspectCV checks extension and size, and that PDFs open with at least one page.
func InspectCV(filename string, data []byte, maxSize int64) (CVInfo, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := cvContentTypes[ext]
	if !ok {
		return CVInfo{}, apperr.Validation("Unsupported CV file type", map[string]string{
			"cv": fmt.Sprintf("%s files are not accepted", strings.TrimPrefix(ext, ".")),
		})
	}
	if len(data) == 0 {
		return CVInfo{}, apperr.Validation("CV file is empty", map[string]string{"cv": "CV file is required"})
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return CVInfo{}, apperr.Validation("CV file is too large", map[string]string{
			"cv": fmt.Sprintf("max %dMB", maxSize>>20),
		})
	}

	info := CVInfo{Ext: ext, ContentType: contentType}
	if ext == ".pdf" {
		pages, err := pdfPageCount(data)
		if err != nil || pages < 1 {
			return CVInfo{}, apperr.Validation("CV could not be read", map[string]string{
				"cv": "PDF is damaged or has no pages",
			})
		}
		info.Pages = pages
	}
	return info, nil
}

func pdfPageCount(data []byte) (int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
