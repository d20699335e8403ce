// Package remote implements the catalog source client. The remote API is the
// authority for every product field except the locally owned favorite flag.
package remote

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ErrUnavailable marks transport-level failures: the catalog endpoint could
// not be reached, answered with a non-2xx status, or returned a body that
// could not be decoded. Callers use it to distinguish network trouble from
// programming errors.
var ErrUnavailable = errors.New("remote catalog unavailable")

// Item is one catalog entry as the remote source reports it. Categories and
// favorite flags are not part of the remote schema.
type Item struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	HasImage    bool
	ImageMime   string
}

// Fetcher returns the full current catalog snapshot. Implemented by Client;
// the sync engine depends on this interface only.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]Item, error)
}

// Client fetches the catalog over HTTP.
type Client struct {
	base string
	http *http.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a Client for the given base URL (without trailing slash).
// When httpClient is nil a client with a 30s timeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httpClient,
	}
}

// ImageURL returns the image location for a product id.
func (c *Client) ImageURL(id string) string {
	return c.base + "/items/" + id + "/image"
}

// FetchCatalog requests the full catalog. There is no pagination; the
// endpoint always returns every item.
func (c *Client) FetchCatalog(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/items", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrUnavailable, "unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return items, nil
}

func decodeItems(data []byte) ([]Item, error) {
	var items []Item
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		item, err := decodeItem(d)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog items")
	}
	return items, nil
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var it Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "item_id":
			it.ID, err = d.Str()
		case "name":
			it.Name, err = d.Str()
		case "description":
			if d.Next() == jx.Null {
				return d.Null()
			}
			it.Description, err = d.Str()
		case "price":
			var f float64
			if f, err = d.Float64(); err != nil {
				return err
			}
			it.Price = decimal.NewFromFloat(f)
		case "has_image":
			it.HasImage, err = d.Bool()
		case "image_mime":
			if d.Next() == jx.Null {
				return d.Null()
			}
			it.ImageMime, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}
