// Package normalizer converts raw scraped listings into canonical Deal
// records with a stable identity key.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/crushthecasino/amzn-price-bot/internal/models"
	"github.com/crushthecasino/amzn-price-bot/internal/util"
)

// Reason identifies why a listing could not be normalized.
type Reason string

const (
	MissingTitle Reason = "missing-title"
	MissingPrice Reason = "missing-price"
	MissingID    Reason = "missing-id"
)

// Error is a per-listing normalization failure. The orchestrator skips the
// listing and continues the cycle.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalization failed (%s): %s", e.Reason, e.Detail)
}

type Normalizer struct {
	affiliateTag string
	validate     *validator.Validate
	now          func() time.Time
}

func New(affiliateTag string) *Normalizer {
	return &Normalizer{
		affiliateTag: affiliateTag,
		validate:     validator.New(),
		now:          time.Now,
	}
}

// Normalize converts one raw listing into a Deal. It is pure apart from the
// discovery timestamp: re-normalizing the same listing always yields the same
// identity key.
func (n *Normalizer) Normalize(raw models.RawListing) (*models.Deal, error) {
	if err := n.validate.Struct(raw); err != nil {
		return nil, classifyValidation(raw, err)
	}

	priceCents, err := util.ParsePriceCents(raw.PriceText)
	if err != nil {
		return nil, &Error{Reason: MissingPrice, Detail: err.Error()}
	}

	var origCents int64
	if raw.OrigPriceText != "" {
		// A bad original price degrades the discount figure but does not
		// sink the listing.
		origCents, _ = util.ParsePriceCents(raw.OrigPriceText)
	}

	discountPct := 0
	if origCents > priceCents {
		discountPct = int((origCents - priceCents) * 100 / origCents)
	}

	sourceURL, _ := util.ApplyAffiliateTag(raw.SourceURL, n.affiliateTag)

	return &models.Deal{
		Key:            DealKey(raw.ASIN, priceCents),
		ASIN:           raw.ASIN,
		Title:          strings.TrimSpace(raw.Title),
		PriceCents:     priceCents,
		OrigPriceCents: origCents,
		Currency:       "CAD",
		Category:       raw.Category,
		DiscountPct:    discountPct,
		URL:            util.ProductURL(raw.ASIN, n.affiliateTag),
		SourceURL:      sourceURL,
		DiscoveredAt:   n.now(),
	}, nil
}

// DealKey derives the deal identity from the ASIN and the whole-dollar price
// tier. Rounding the price down to the dollar means sub-dollar jitter between
// scrapes maps to the same key, while a drop of a dollar or more reads as a
// new deal.
func DealKey(asin string, priceCents int64) string {
	tier := priceCents / 100
	sum := sha256.Sum256([]byte(asin + "|" + strconv.FormatInt(tier, 10)))
	return hex.EncodeToString(sum[:])
}

func classifyValidation(raw models.RawListing, err error) *Error {
	switch {
	case strings.TrimSpace(raw.Title) == "":
		return &Error{Reason: MissingTitle, Detail: err.Error()}
	case strings.TrimSpace(raw.PriceText) == "":
		return &Error{Reason: MissingPrice, Detail: err.Error()}
	default:
		return &Error{Reason: MissingID, Detail: err.Error()}
	}
}
