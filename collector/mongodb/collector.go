// Package mongodb collects one day of MongoDB Atlas spend from the invoices
// API. A day's charges can live on the pending invoice, the current month's
// closed invoice, or both, so line items are gathered across every invoice
// whose period overlaps the day and deduplicated.
package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/framework/retry"
	"github.com/kfdevops/cloudbilling/logger"
)

const (
	sourceFile   = "mongodb-atlas-invoices-api"
	resourceType = "Atlas Cluster"

	requestTimeout = 30 * time.Second

	// Atlas allows 100 requests per minute per API key.
	requestsPerSecond = 1.5
	requestBurst      = 5
)

type InvoiceCollector struct {
	httpClient     *resty.Client
	limiter        *rate.Limiter
	cfg            *config.Config
	retryer        *retry.Retryer
	loggerProvider logger.Provider
	now            func() time.Time
}

// NewInvoiceCollector builds the collector, reading the Atlas key pair from
// the environment here so the credentials live only inside the HTTP client.
func NewInvoiceCollector(cfg *config.Config, loggerProvider logger.Provider) (*InvoiceCollector, error) {
	publicKey, err := config.Secret(config.SecretAtlasPublicKey)
	if err != nil {
		return nil, err
	}

	privateKey, err := config.Secret(config.SecretAtlasPrivateKey)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(cfg.MongoDB.BaseURL).
		SetDigestAuth(publicKey, privateKey).
		SetHeader("Accept", "application/json").
		SetTimeout(requestTimeout)

	return NewInvoiceCollectorWithClient(cfg, loggerProvider, httpClient), nil
}

func NewInvoiceCollectorWithClient(cfg *config.Config, loggerProvider logger.Provider, httpClient *resty.Client) *InvoiceCollector {
	return &InvoiceCollector{
		httpClient:     httpClient,
		limiter:        rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		cfg:            cfg,
		retryer:        retry.New(loggerProvider),
		loggerProvider: loggerProvider,
		now:            time.Now,
	}
}

func (c *InvoiceCollector) Provider() domain.Provider {
	return domain.ProviderMongoDB
}

func (c *InvoiceCollector) Collect(ctx context.Context, day civil.Date) ([]*domain.Record, error) {
	log := c.loggerProvider(ctx)

	invoices, err := c.invoicesForDate(ctx, day)
	if err != nil {
		return nil, err
	}

	items := extractLineItems(invoices, day)
	if len(items) == 0 {
		log.Infof("MongoDB %s: no line items", day)
		return nil, nil
	}

	collectedAt := c.now().UTC()
	records := make([]*domain.Record, 0, len(items))

	for _, item := range items {
		records = append(records, c.toRecord(item, day, collectedAt))
	}

	records = domain.DropZeroCost(records)
	log.Infof("MongoDB %s: %d line items across %d invoices", day, len(records), len(invoices))

	return records, nil
}

type invoice struct {
	ID        string     `json:"id"`
	StartDate string     `json:"startDate"`
	EndDate   string     `json:"endDate"`
	LineItems []lineItem `json:"lineItems"`
}

type invoiceList struct {
	Results    []invoice `json:"results"`
	TotalCount int       `json:"totalCount"`
}

type lineItem struct {
	ClusterName     string  `json:"clusterName"`
	SKU             string  `json:"sku"`
	StartDate       string  `json:"startDate"`
	GroupID         string  `json:"groupId"`
	GroupName       string  `json:"groupName"`
	Note            string  `json:"note"`
	TotalPriceCents int64   `json:"totalPriceCents"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
}

// invoicesForDate returns the pending invoice (if any) plus the detail of
// every closed invoice whose period overlaps the day. The invoice list is
// paginated; a short page ends it.
func (c *InvoiceCollector) invoicesForDate(ctx context.Context, day civil.Date) ([]invoice, error) {
	var invoices []invoice

	var pending invoice

	found, err := c.getJSON(ctx, "atlas pending invoice", fmt.Sprintf("/orgs/%s/invoices/pending", c.cfg.MongoDB.OrgID), true, &pending)
	if err != nil {
		return nil, err
	}

	if found {
		invoices = append(invoices, pending)
	}

	dayStr := day.String()

	for pageNum := 1; ; pageNum++ {
		var page invoiceList

		path := fmt.Sprintf("/orgs/%s/invoices?pageNum=%d&itemsPerPage=%d", c.cfg.MongoDB.OrgID, pageNum, c.cfg.MongoDB.PageSize)

		if _, err := c.getJSON(ctx, "atlas invoice list", path, false, &page); err != nil {
			return nil, err
		}

		for _, inv := range page.Results {
			if !periodContains(inv.StartDate, inv.EndDate, dayStr) {
				continue
			}

			var detail invoice

			if _, err := c.getJSON(ctx, "atlas invoice detail", fmt.Sprintf("/orgs/%s/invoices/%s", c.cfg.MongoDB.OrgID, inv.ID), false, &detail); err != nil {
				return nil, err
			}

			invoices = append(invoices, detail)
		}

		if len(page.Results) < c.cfg.MongoDB.PageSize {
			break
		}
	}

	return invoices, nil
}

// getJSON performs one rate-limited GET under the retry policy. The op label,
// not the path, goes into errors and logs; paths carry the organization ID.
// With allowMissing a 404 reports absence instead of failing.
func (c *InvoiceCollector) getJSON(ctx context.Context, op, path string, allowMissing bool, out interface{}) (bool, error) {
	found := false

	err := c.retryer.Do(ctx, op, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetResult(out).
			Get(path)
		if err != nil {
			return err
		}

		if resp.StatusCode() == 404 && allowMissing {
			found = false
			return nil
		}

		if resp.IsError() {
			return &domain.APIError{Op: op, StatusCode: resp.StatusCode()}
		}

		found = true

		return nil
	})
	if err != nil {
		return false, err
	}

	return found, nil
}

// extractLineItems keeps the items that started on the day, deduplicated by
// (cluster, sku, start date): the same item shows up on both the pending and
// the closed invoice around month close.
func extractLineItems(invoices []invoice, day civil.Date) []lineItem {
	dayStr := day.String()
	seen := make(map[string]struct{})

	var items []lineItem

	for _, inv := range invoices {
		for _, item := range inv.LineItems {
			if truncateDate(item.StartDate) != dayStr {
				continue
			}

			key := item.ClusterName + "\x00" + item.SKU + "\x00" + truncateDate(item.StartDate)
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			items = append(items, item)
		}
	}

	return items
}

func (c *InvoiceCollector) toRecord(item lineItem, day civil.Date, collectedAt time.Time) *domain.Record {
	cost := domain.Round(decimal.NewFromInt(item.TotalPriceCents).Div(decimal.NewFromInt(100)))

	clusterName := item.ClusterName
	if clusterName == "" {
		clusterName = item.SKU
	}

	if clusterName == "" {
		clusterName = domain.Unknown
	}

	accountName := item.GroupName
	if accountName == "" {
		accountName = c.cfg.MongoDB.OrgID
	}

	projectID := item.GroupID
	if projectID == "" {
		projectID = c.cfg.MongoDB.OrgID
	}

	skuDescription := item.Note
	if skuDescription == "" {
		skuDescription = item.SKU
	}

	usage := domain.Round(decimal.NewFromFloat(item.Quantity))

	r := &domain.Record{
		BillingDate:      day,
		Provider:         domain.ProviderMongoDB,
		AccountID:        c.cfg.MongoDB.OrgID,
		AccountName:      accountName,
		ProjectID:        projectID,
		ServiceName:      friendlyService(item.SKU),
		SKU:              item.SKU,
		SKUDescription:   skuDescription,
		ResourceID:       clusterName,
		ResourceName:     clusterName,
		ResourceType:     resourceType,
		Cost:             cost,
		OriginalCost:     cost,
		UsageAmount:      &usage,
		UsageUnit:        item.Unit,
		Environment:      c.cfg.MongoDB.Environment,
		Region:           c.cfg.MongoDB.Region,
		CollectedAt:      collectedAt,
		ProcessedAt:      collectedAt,
		SourceFile:       sourceFile,
		CollectorVersion: c.cfg.CollectorVersion,
	}

	r.Normalize()

	return r
}

// friendlyService maps Atlas SKU codes onto readable service names.
func friendlyService(sku string) string {
	upper := strings.ToUpper(sku)

	switch {
	case strings.Contains(upper, "CLUSTER"):
		return "Atlas Cluster"
	case strings.Contains(upper, "STORAGE"):
		return "Storage"
	case strings.Contains(upper, "TRANSFER"):
		return "Data Transfer"
	case strings.Contains(upper, "BACKUP"):
		return "Backup"
	case strings.Contains(upper, "SEARCH"):
		return "Atlas Search"
	case strings.Contains(upper, "SERVERLESS"):
		return "Serverless"
	case strings.Contains(upper, "STREAM"):
		return "Atlas Stream"
	case strings.Contains(upper, "CHARTS"):
		return "Charts"
	case sku == "":
		return "MongoDB"
	default:
		return titleCase(strings.ReplaceAll(sku, "_", " "))
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}

	return strings.Join(words, " ")
}

// periodContains checks start <= day <= end on the date prefix of the
// invoice period timestamps.
func periodContains(start, end, day string) bool {
	return truncateDate(start) <= day && day <= truncateDate(end)
}

func truncateDate(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}

	return ts
}
