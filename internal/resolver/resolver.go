package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/domain"
	"github.com/honicmarkert-art/honiccompanystore-ecommerce-sub003/internal/logger"
)

// OrderFinder is the slice of the order store the resolver needs. A nil
// order with a nil error means "no match", the resolver keeps going.
type OrderFinder interface {
	FindByNormalizedReference(ctx context.Context, norm string) (*domain.Order, error)
	FindByReference(ctx context.Context, ref string) (*domain.Order, error)
	FindByTransactionID(ctx context.Context, txnID string) (*domain.Order, error)
}

// The gateway has appended ...retry<millis> to references on retried
// attempts at some point of its history.
var retryPattern = regexp.MustCompile(`^(.+?)retry\d+$`)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Normalize strips everything but letters and digits and lower-cases what is
// left. Both the stored reference and the gateway-supplied one go through
// this before comparison.
func Normalize(ref string) string {
	return strings.ToLower(nonAlnum.ReplaceAllString(ref, ""))
}

// Resolver maps a gateway-supplied order reference, possibly mangled by any
// of the reference formats the gateway has used over time, to exactly one
// stored order. The cascade is deterministic: each step is an exact match
// after a fixed normalization, first hit wins, no fuzzy matching.
type Resolver struct {
	finder OrderFinder
}

func New(finder OrderFinder) *Resolver {
	return &Resolver{finder: finder}
}

func (r *Resolver) Resolve(ctx context.Context, ref, txnID string) (*domain.Order, error) {
	var tried []string

	// 1. normalized match
	if norm := Normalize(ref); norm != "" {
		tried = append(tried, norm)
		if ord, err := r.finder.FindByNormalizedReference(ctx, norm); err != nil || ord != nil {
			return ord, err
		}
	}

	// 2. verbatim match
	if ref != "" {
		tried = append(tried, ref)
		if ord, err := r.finder.FindByReference(ctx, ref); err != nil || ord != nil {
			return ord, err
		}
	}

	// 3. retry suffix stripped, then normalized
	if m := retryPattern.FindStringSubmatch(ref); m != nil {
		if norm := Normalize(m[1]); norm != "" {
			tried = append(tried, norm)
			if ord, err := r.finder.FindByNormalizedReference(ctx, norm); err != nil || ord != nil {
				return ord, err
			}
		}
	}

	// 4 and 5. leading token before the first whitespace, normalized then verbatim
	if token := leadingToken(ref); token != "" && token != ref {
		if norm := Normalize(token); norm != "" {
			tried = append(tried, norm)
			if ord, err := r.finder.FindByNormalizedReference(ctx, norm); err != nil || ord != nil {
				return ord, err
			}
		}
		tried = append(tried, token)
		if ord, err := r.finder.FindByReference(ctx, token); err != nil || ord != nil {
			return ord, err
		}
	}

	// 6. fall back to the transaction id a prior attempt may have recorded
	if txnID != "" {
		tried = append(tried, "txn:"+txnID)
		if ord, err := r.finder.FindByTransactionID(ctx, txnID); err != nil || ord != nil {
			return ord, err
		}
	}

	logger.Warn("order reference did not resolve",
		"reference", ref,
		"transaction_id", txnID,
		"tried", strings.Join(tried, ", "),
	)
	return nil, domain.ErrOrderNotFound
}

func leadingToken(ref string) string {
	if i := strings.IndexFunc(ref, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }); i >= 0 {
		return ref[:i]
	}
	return ref
}
