package directus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/nhle/memebox/internal/model"
)

// ThumbnailTransforms is the asset transform used for notification and
// list thumbnails.
const ThumbnailTransforms = "width=100&height=100&fit=cover"

// UploadFile stores r as a new file and returns its metadata.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (*model.File, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(filename))))
	header.Set("Content-Type", ContentTypeOf(filename))

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("creating upload part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finishing upload: %w", err)
	}

	var env Envelope[model.File]
	err = c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/files",
		Payload:     buf.Bytes(),
		ContentType: w.FormDataContentType(),
	}, &env)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// AssetURL returns the public URL of a stored file. transforms is an
// optional raw query such as ThumbnailTransforms.
func (c *Client) AssetURL(fileID, transforms string) string {
	if fileID == "" {
		return ""
	}
	u := c.assetsURL + "/" + fileID
	if transforms != "" {
		u += "?" + transforms
	}
	return u
}

// ContentTypeOf guesses a MIME type from the file extension.
func ContentTypeOf(filename string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
