package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response body is quoted in errors.
const maxErrorBody = 512

// jsonCall describes one JSON POST to an embedding backend.
type jsonCall struct {
	client  *http.Client
	url     string
	headers http.Header
	body    any
}

// do sends c and decodes a 2xx reply into a T. For any other status the
// body is still decoded on a best-effort basis and handed to backendMsg so
// the backend's own error text ends up in the returned error. Transport
// errors, including context cancellation, stay in the wrapped chain.
func do[T any](ctx context.Context, c jsonCall, backendMsg func(*T) string) (*T, error) {
	payload, err := json.Marshal(c.body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := new(T)
	decodeErr := json.Unmarshal(raw, out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil && backendMsg != nil {
			msg = backendMsg(out)
		}
		return nil, statusError(resp.StatusCode, msg, raw)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return out, nil
}

// statusError formats a non-2xx response, preferring the backend's own
// message when one was decoded.
func statusError(status int, msg string, raw []byte) error {
	if msg != "" {
		return fmt.Errorf("HTTP %d: %s", status, msg)
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return fmt.Errorf("HTTP %d: %s", status, bytes.TrimSpace(raw))
}

// checkCount rejects a reply whose vector count differs from the input.
func checkCount(want, got int) error {
	if want != got {
		return fmt.Errorf("expected %d embeddings, got %d", want, got)
	}
	return nil
}

// inBatches calls embed on consecutive slices of at most size texts and
// concatenates the results in input order.
func inBatches(ctx context.Context, texts []string, size int, embed func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if size <= 0 || len(texts) <= size {
		return embed(ctx, texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}
