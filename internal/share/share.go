// Package share builds the result share-image URL (spec §4.8): a single
// POST to speedtest.net's image generator carrying a freshly minted
// idempotency token, which also keys the returned URL.
package share

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/abhayap/speedtest-go/internal/errs"
	"github.com/abhayap/speedtest-go/internal/model"
)

const (
	shareEndpoint = "https://www.speedtest.net/api/embed/image.php"
	requestTimeout = 10 * time.Second
)

// Params carries the fields the share image embeds.
type Params struct {
	Client       model.ClientInfo
	Server       model.RankedServer
	DownloadMbps float64
	UploadMbps   float64
	LatencyMs    float64
}

// ImageURL submits Params to the share endpoint and returns the resulting
// image URL. Every call mints a fresh idempotency token (spec §4.8); the
// caller controls retries, not this function.
func ImageURL(p Params) (string, error) {
	token := uuid.NewString()

	form := url.Values{}
	form.Set("idempotency_key", token)
	form.Set("download", fmt.Sprintf("%.2f", p.DownloadMbps))
	form.Set("upload", fmt.Sprintf("%.2f", p.UploadMbps))
	form.Set("latency", fmt.Sprintf("%.2f", p.LatencyMs))
	form.Set("ip", p.Client.IP)
	form.Set("server", p.Server.Host)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, shareEndpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", errs.New(errs.ProtocolError, "share.ImageURL", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", errs.New(errs.NetworkIO, "share.ImageURL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.New(errs.NetworkIO, "share.ImageURL", fmt.Errorf("status %d", resp.StatusCode))
	}

	return fmt.Sprintf("%s?key=%s", shareEndpoint, token), nil
}
