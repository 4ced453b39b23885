package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/gallery-backend/pkg/db/models"
)

const (
	// LegacyOptionRef marks a selection made before pricing options existed.
	LegacyOptionRef = "legacy"

	// SingleOptionName is the platform name for the per-photo tier.
	SingleOptionName = "Single Photo"

	// historicalSingleCents is the original per-photo price. Options priced at
	// this amount are treated as singles even when renamed.
	historicalSingleCents = 500

	// fullLibraryFallbackCents prices a library buyout whose option row has no
	// usable price.
	fullLibraryFallbackCents = 99900
)

// Item is one selected photo, optionally tagged with the pricing option the
// buyer chose.
type Item struct {
	PhotoID   uuid.UUID
	OptionRef string
}

// Quote is the computed price for a selection.
type Quote struct {
	TotalCents    int
	Message       string
	EligibleCount int
	// PhotoIDs is the expanded selection. A full-library item expands to
	// every active photo at computation time.
	PhotoIDs []uuid.UUID
}

// Engine computes totals from a selection and the library's pricing options.
// It performs no I/O; callers resolve options and active photos first.
type Engine struct {
	singleFallbackCents int
}

// NewEngine builds a pricing engine. singleFallbackCents is used when no
// single-photo option is configured.
func NewEngine(singleFallbackCents int) *Engine {
	if singleFallbackCents <= 0 {
		singleFallbackCents = historicalSingleCents
	}
	return &Engine{singleFallbackCents: singleFallbackCents}
}

// Quote prices the selection. activePhotoIDs is the library's current active
// set, consulted only when a full-library option is in the selection.
func (e *Engine) Quote(items []Item, options []models.PricingOption, activePhotoIDs []uuid.UUID) (*Quote, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items selected")
	}

	byID := make(map[string]models.PricingOption, len(options))
	for _, opt := range options {
		byID[opt.ID.String()] = opt
	}

	quote := &Quote{}
	seen := make(map[uuid.UUID]struct{})
	addPhoto := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		quote.PhotoIDs = append(quote.PhotoIDs, id)
	}

	explicitCents := 0
	eligible := 0

	for _, item := range items {
		opt, ok := e.resolveOption(item.OptionRef, byID)
		if !ok {
			// Unknown or legacy reference degrades to single pricing
			// instead of failing checkout.
			eligible++
			addPhoto(item.PhotoID)
			continue
		}

		switch {
		case opt.IsFullLibrary():
			price := opt.PriceCents
			if price <= 0 {
				price = fullLibraryFallbackCents
			}
			explicitCents += price
			// The selected photo always survives into the quote, so a failed
			// active-set expansion still leaves a recoverable selection.
			addPhoto(item.PhotoID)
			for _, id := range activePhotoIDs {
				addPhoto(id)
			}
		case e.isBundleEligible(opt):
			eligible++
			addPhoto(item.PhotoID)
		default:
			explicitCents += opt.PriceCents
			addPhoto(item.PhotoID)
		}
	}

	bundles := bundleOptions(options)
	singleCents := e.singlePrice(options)

	bundleCents, bundleCount, remainder := packBundles(eligible, bundles, singleCents)

	quote.TotalCents = explicitCents + bundleCents
	quote.EligibleCount = eligible
	quote.Message = buildMessage(eligible, bundles, bundleCount, remainder)
	return quote, nil
}

// resolveOption returns the referenced option. ok is false when the item has
// no usable reference and must be priced as a single.
func (e *Engine) resolveOption(ref string, byID map[string]models.PricingOption) (models.PricingOption, bool) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || strings.EqualFold(trimmed, LegacyOptionRef) {
		return models.PricingOption{}, false
	}
	opt, ok := byID[trimmed]
	return opt, ok
}

// isBundleEligible recognizes the platform single tier, by name or by the
// historical price. Any other explicitly referenced option keeps its own
// price, including premium single-photo tiers.
func (e *Engine) isBundleEligible(opt models.PricingOption) bool {
	if opt.Name == SingleOptionName {
		return true
	}
	return opt.PriceCents == historicalSingleCents
}

func (e *Engine) singlePrice(options []models.PricingOption) int {
	for _, opt := range options {
		if opt.Active && opt.PhotoCount == 1 {
			return opt.PriceCents
		}
	}
	return e.singleFallbackCents
}

func bundleOptions(options []models.PricingOption) []models.PricingOption {
	var bundles []models.PricingOption
	for _, opt := range options {
		if opt.Active && opt.PhotoCount > 1 {
			bundles = append(bundles, opt)
		}
	}
	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].PhotoCount > bundles[j].PhotoCount
	})
	return bundles
}

// packBundles greedily fills from the largest bundle down and prices the
// remainder at the single rate. Greedy-by-largest assumes bigger bundles are
// always better per unit; it is not a general knapsack solve.
func packBundles(count int, bundles []models.PricingOption, singleCents int) (totalCents, bundleCount, remainder int) {
	remainder = count
	for _, bundle := range bundles {
		if bundle.PhotoCount <= 0 || remainder < bundle.PhotoCount {
			continue
		}
		n := remainder / bundle.PhotoCount
		totalCents += n * bundle.PriceCents
		bundleCount += n
		remainder %= bundle.PhotoCount
	}
	totalCents += remainder * singleCents
	return totalCents, bundleCount, remainder
}

func buildMessage(count int, bundles []models.PricingOption, bundleCount, remainder int) string {
	if count == 0 || len(bundles) == 0 {
		return ""
	}

	smallest := bundles[len(bundles)-1]
	if count < smallest.PhotoCount {
		needed := smallest.PhotoCount - count
		return fmt.Sprintf("Add %d more for the %s bundle!", needed, formatDollars(smallest.PriceCents))
	}

	for _, bundle := range bundles {
		if count == bundle.PhotoCount {
			return "Bundle Applied! (Best Value)"
		}
	}

	return fmt.Sprintf("%d Bundle(s) + %d Photo", bundleCount, remainder)
}

func formatDollars(cents int) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
