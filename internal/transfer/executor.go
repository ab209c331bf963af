package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clipper-camera/clipper-app/internal/config"
	"github.com/clipper-camera/clipper-app/internal/queue"
	"github.com/clipper-camera/clipper-app/internal/services"
)

const uploadPath = "/upload"

// ProgressFunc receives upload progress as a percentage. Values are
// monotonically non-decreasing within one attempt, ending at 100 on success.
type ProgressFunc func(pct int)

// Executor performs one upload attempt for a queue item. Implementations
// never touch persisted state; outcomes flow back through the returned error
// and the progress callback.
type Executor interface {
	Upload(ctx context.Context, item *queue.Item, onProgress ProgressFunc) error
}

// HTTPDoer describes the HTTP client used by the executor.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpExecutor struct {
	baseURL string
	userKey string
	client  HTTPDoer
}

// NewExecutor builds the multipart HTTP executor from endpoint configuration.
func NewExecutor(cfg *config.Config) Executor {
	timeout := time.Duration(cfg.Endpoint.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &httpExecutor{
		baseURL: cfg.Endpoint.BaseURL,
		userKey: cfg.Endpoint.UserKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewExecutorWithClient builds an executor over an injected HTTP client (used in tests).
func NewExecutorWithClient(baseURL, userKey string, client HTTPDoer) Executor {
	return &httpExecutor{baseURL: baseURL, userKey: userKey, client: client}
}

type uploadResponse struct {
	Status string `json:"status"`
}

// Upload submits one item as a multipart POST. The media bytes stream from
// disk through a counting reader that drives the progress callback.
func (e *httpExecutor) Upload(ctx context.Context, item *queue.Item, onProgress ProgressFunc) error {
	if item == nil {
		return services.Wrap(services.ErrTransportError, "upload", "nil item", nil)
	}
	if onProgress == nil {
		onProgress = func(int) {}
	}

	file, err := os.Open(item.PayloadPath)
	if err != nil {
		return services.Wrap(services.ErrPayloadMissing, "upload", "open payload", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return services.Wrap(services.ErrPayloadMissing, "upload", "stat payload", err)
	}

	body, contentType, err := e.buildBody(item, file, info.Size(), onProgress)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+uploadPath, body)
	if err != nil {
		return services.Wrap(services.ErrTransportError, "upload", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := e.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransportError, "upload", "submit", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrServerRejected, "upload", fmt.Sprintf("server returned %d", resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return services.Wrap(services.ErrServerError, "upload", fmt.Sprintf("server returned %d", resp.StatusCode), nil)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return services.Wrap(services.ErrResponseUnparseable, "upload", "read response", err)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return services.Wrap(services.ErrResponseUnparseable, "upload", "decode response", err)
	}

	onProgress(100)
	return nil
}

// buildBody streams the multipart form through a pipe so large videos never
// sit in memory whole.
func (e *httpExecutor) buildBody(item *queue.Item, media io.Reader, size int64, onProgress ProgressFunc) (io.Reader, string, error) {
	recipients, err := json.Marshal(recipientsOrEmpty(item.Recipients))
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransportError, "upload", "encode recipients", err)
	}
	var overlays []byte
	if len(item.Overlays) > 0 {
		overlays, err = json.Marshal(item.Overlays)
		if err != nil {
			return nil, "", services.Wrap(services.ErrTransportError, "upload", "encode overlays", err)
		}
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	counted := newProgressReader(media, size, onProgress)

	go func() {
		err := writeFields(writer, e.userKey, item, recipients, overlays, counted)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	return pr, writer.FormDataContentType(), nil
}

func writeFields(writer *multipart.Writer, userKey string, item *queue.Item, recipients, overlays []byte, media io.Reader) error {
	fields := map[string]string{
		"userKey":    userKey,
		"mediaType":  string(item.MediaKind),
		"recipients": string(recipients),
		"timestamp":  strconv.FormatInt(item.ID, 10),
	}
	for _, name := range []string{"userKey", "mediaType", "recipients", "timestamp"} {
		if err := writer.WriteField(name, fields[name]); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	if len(overlays) > 0 {
		if err := writer.WriteField("textOverlays", string(overlays)); err != nil {
			return fmt.Errorf("write field textOverlays: %w", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename="%d"`, item.ID))
	header.Set("Content-Type", item.MediaKind.ContentType())
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(part, media); err != nil {
		return fmt.Errorf("copy media: %w", err)
	}
	return nil
}

func recipientsOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
