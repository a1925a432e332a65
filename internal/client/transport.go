package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
)

// filePart is one file field of a multipart upload.
type filePart struct {
	field string
	path  string
}

// postFiles uploads the given files as a multipart/form-data request and
// decodes the JSON response into out.
func (a *Agent) postFiles(url string, parts []filePart, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, p := range parts {
		f, err := os.Open(p.path)
		if err != nil {
			return fmt.Errorf("open %s: %w", p.path, err)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			p.field, filepath.Base(p.path)))
		header.Set("Content-Type", "application/octet-stream")
		part, err := writer.CreatePart(header)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return fmt.Errorf("read %s: %w", p.path, err)
		}
		f.Close()
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := a.httpc.Post(url, writer.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, decodeError(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getJSON fetches url and decodes the JSON response into out.
func (a *Agent) getJSON(url string, out any) error {
	resp, err := a.httpc.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, decodeError(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getBytes fetches url and returns the raw response body.
func (a *Agent) getBytes(url string) ([]byte, error) {
	resp, err := a.httpc.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", url, decodeError(resp))
	}
	return io.ReadAll(resp.Body)
}

// decodeError extracts a useful message from a non-200 response.
func decodeError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Detail != "":
			return payload.Detail
		case payload.Message != "":
			return payload.Message
		}
	}
	return resp.Status
}
