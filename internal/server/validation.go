// validation.go - Input validation for uploads and account fields.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// uploadedFile is one multipart file, fully buffered, MIME-validated and
// ready for the media store.
type uploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f uploadedFile) isVideo() bool {
	return strings.HasPrefix(f.ContentType, "video/")
}

var errTooManyFiles = errors.New("too many files")

// validateMediaType accepts only images and videos, checked before any
// byte reaches the media host.
func validateMediaType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i > 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/") {
		return nil
	}
	return fmt.Errorf("only image and video files are allowed, got %q", contentType)
}

// readMultipartMedia buffers the multipart file parts named "media", at
// most maxFiles of them, and collects the remaining parts as plain form
// values. Each file's declared content type is validated before anything
// is returned, so a single bad file rejects the whole request with no
// media-host side effect. The request body is expected to already be
// capped by MaxBytesReader; an overrun surfaces as *http.MaxBytesError.
func readMultipartMedia(r *http.Request, maxFiles int) ([]uploadedFile, url.Values, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, errors.New("bad multipart body")
	}

	var files []uploadedFile
	values := url.Values{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, multipartReadError(err)
		}

		if part.FormName() != "media" {
			data, err := io.ReadAll(part)
			_ = part.Close()
			if err != nil {
				return nil, nil, multipartReadError(err)
			}
			values.Add(part.FormName(), string(data))
			continue
		}

		if len(files) >= maxFiles {
			_ = part.Close()
			return nil, nil, errTooManyFiles
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, nil, multipartReadError(err)
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		if err := validateMediaType(contentType); err != nil {
			return nil, nil, err
		}

		files = append(files, uploadedFile{
			Name:        sanitizeFilename(part.FileName()),
			ContentType: contentType,
			Data:        data,
		})
	}

	return files, values, nil
}

// multipartReadError keeps the body-limit error distinguishable so the
// handler can answer 413 instead of 400.
func multipartReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return maxErr
	}
	return errors.New("bad multipart body")
}

// sanitizeFilename strips path components and anything outside a safe
// character set.
func sanitizeFilename(name string) string {
	base := strings.TrimSpace(filepath.Base(name))
	if base == "" || base == "." || base == "/" {
		return ""
	}

	var b strings.Builder
	for _, ch := range base {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') || ch == '.' || ch == '_' || ch == '-' {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._-")
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// validateEmail checks if an email address is valid
func validateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// validatePassword checks password strength requirements
func validatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters long"
	}
	if len(password) > 128 {
		return false, "Password must be less than 128 characters"
	}
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)
	hasLetter := regexp.MustCompile(`[a-zA-Z]`).MatchString(password)

	if !hasNumber || !hasLetter {
		return false, "Password must contain both letters and numbers"
	}

	return true, ""
}
