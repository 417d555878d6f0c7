// Package scraper implements the availability oracle: given a pincode it
// reports the current stock state of every product in the tracked category.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
)

// Checker is what the scrape cycle needs from the oracle. A failed check
// skips the pincode for that run; it never corrupts the status cache.
type Checker interface {
	Check(ctx context.Context, pincode string) ([]domain.StockReading, error)
}

// categoryPath is the protein category listing, served as JSON when asked.
const categoryPath = "/api/1/entity/ms.products?category=protein"

// ShopChecker queries the shop's category listing over HTTP.
type ShopChecker struct {
	base   string
	client *http.Client
	log    *zap.Logger
}

func NewShopChecker(base string, log *zap.Logger) *ShopChecker {
	return &ShopChecker{
		base:   base,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// product is one entry of the category listing response.
type product struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Available int    `json:"available"`
	InStock   bool   `json:"inventory_quantity_available"`
}

type listing struct {
	Data []product `json:"data"`
}

// Check fetches the category listing for a pincode and maps it to readings.
// The observation timestamp is taken once for the whole page, since the
// listing is a single snapshot.
func (c *ShopChecker) Check(ctx context.Context, pincode string) ([]domain.StockReading, error) {
	url := c.base + categoryPath + "&pincode=" + pincode

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing for %s: %w", pincode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing for %s: status %d", pincode, resp.StatusCode)
	}

	var page listing
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode listing for %s: %w", pincode, err)
	}

	observed := time.Now().UTC()
	readings := make([]domain.StockReading, 0, len(page.Data))
	for _, p := range page.Data {
		if p.Name == "" {
			continue
		}
		readings = append(readings, domain.StockReading{
			Product:    p.Name,
			URL:        c.base + "/en/product/" + p.Alias,
			Pincode:    pincode,
			Available:  p.Available > 0 || p.InStock,
			ObservedAt: observed,
		})
	}

	c.log.Debug("listing fetched",
		zap.String("pincode", pincode),
		zap.Int("products", len(readings)),
	)
	return readings, nil
}
