// Package files moves binary content in and out of an AMS instance: the
// multipart upload endpoint, the attach-to-event and avatar flows built on
// it, and attachment downloads during event exports. All filesystem access
// goes through afero so the flows are testable in memory.
package files

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"

	"github.com/brandonyach/teamworksams/pkg/client"
)

const (
	processorDocument = "document-key"
	processorAvatar   = "avatar-key"
)

// documentExtensions are the file types the upload endpoint accepts for
// event attachments.
var documentExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".txt": {}, ".csv": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".heic": {},
	".xls": {}, ".xlsx": {}, ".xlsm": {}, ".tiff": {}, ".tif": {},
	".odt": {}, ".zip": {}, ".ppt": {}, ".pptx": {}, ".eml": {}, ".bmp": {},
}

// avatarExtensions are the image types accepted for profile pictures.
var avatarExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {},
}

// Service uploads files from an afero filesystem to an AMS instance.
type Service struct {
	client *client.Client
	fs     afero.Fs
	log    hclog.Logger
}

// NewService builds a Service. A nil fs means the OS filesystem and a nil
// logger discards output.
func NewService(c *client.Client, fs afero.Fs, logger hclog.Logger) *Service {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{client: c, fs: fs, log: logger.Named("files")}
}

// Upload is the server's receipt for one uploaded file.
type Upload struct {
	FileName   string
	FileID     int64
	ServerName string
}

// Reference renders the value an event file field stores, pairing the file
// identifier with the server-side name.
func (u Upload) Reference() string {
	return fmt.Sprintf("%d|%s", u.FileID, u.ServerName)
}

// upload posts one file to the instance-level upload endpoint and confirms
// it through the upload status endpoint, which reports the assigned file
// identifier.
func (s *Service) upload(ctx context.Context, dir, fileName, processorKey string) (Upload, error) {
	f, err := s.fs.Open(filepath.Join(dir, fileName))
	if err != nil {
		return Upload{}, fmt.Errorf("opening '%s': %w", fileName, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("session-token", s.client.SessionToken()); err != nil {
		return Upload{}, err
	}
	mw.WriteField("filename", fileName)
	mw.WriteField("processorkey", processorKey)

	mimeType := mime.TypeByExtension(filepath.Ext(fileName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="filedata"; filename="%s"`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return Upload{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return Upload{}, fmt.Errorf("reading '%s': %w", fileName, err)
	}
	if err := mw.Close(); err != nil {
		return Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL(), &buf)
	if err != nil {
		return Upload{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := s.client.Do(req)
	if err != nil {
		return Upload{}, fmt.Errorf("uploading '%s': %w", fileName, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Upload{}, client.NewError(
			fmt.Sprintf("failed to upload file '%s': status %d", fileName, resp.StatusCode))
	}

	return s.uploadStatus(ctx, fileName)
}

func (s *Service) uploadStatus(ctx context.Context, fileName string) (Upload, error) {
	body, err := s.client.Fetch(ctx, http.MethodPost, "fileupload/getUploadStatus",
		map[string]any{}, client.WithoutCache())
	if err != nil {
		return Upload{}, err
	}
	var status struct {
		UploadStatus struct {
			Error   bool   `mapstructure:"error"`
			Message string `mapstructure:"message"`
		} `mapstructure:"uploadStatus"`
		Data []struct {
			Value struct {
				ID   int64  `mapstructure:"id"`
				Name string `mapstructure:"name"`
			} `mapstructure:"value"`
		} `mapstructure:"data"`
	}
	if err := mapstructure.WeakDecode(body, &status); err != nil {
		return Upload{}, client.WrapError(err,
			fmt.Sprintf("invalid upload status for '%s'", fileName))
	}
	if status.UploadStatus.Error || len(status.Data) == 0 {
		msg := status.UploadStatus.Message
		if msg == "" {
			msg = "unknown error"
		}
		return Upload{}, client.NewError(
			fmt.Sprintf("upload failed for '%s': %s", fileName, msg))
	}
	v := status.Data[0].Value
	if v.ID == 0 {
		return Upload{}, client.NewError(
			fmt.Sprintf("no file id returned for '%s'", fileName))
	}
	return Upload{FileName: fileName, FileID: v.ID, ServerName: v.Name}, nil
}

// uploadURL is the instance-level upload endpoint, which lives above the
// site path the API endpoints hang off.
func (s *Service) uploadURL() string {
	u, err := url.Parse(s.client.URL())
	if err != nil {
		return s.client.URL() + "/x/fileupload"
	}
	u.Path = "/x/fileupload"
	u.RawQuery = ""
	return u.String()
}

func validExtension(fileName string, allowed map[string]struct{}) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowed[ext]; !ok {
		return fmt.Errorf("invalid file type '%s'", ext)
	}
	return nil
}
