package loaders

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/labtrack/lims/internal/domain/entities"
	apperrors "github.com/labtrack/lims/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// BillingSource is what the billing loader batches against
type BillingSource interface {
	GetByIDs(ctx context.Context, ids []string) ([]*entities.BillingEntry, error)
}

// Loaders contains the per-request dataloaders
type Loaders struct {
	BillingLoader *dataloader.Loader[string, *entities.BillingEntry]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(billing BillingSource) *Loaders {
	return &Loaders{
		BillingLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.BillingEntry] {
			results := make([]*dataloader.Result[*entities.BillingEntry], len(keys))
			entries, err := billing.GetByIDs(ctx, keys)

			entryMap := make(map[string]*entities.BillingEntry, len(entries))
			if err == nil {
				for _, e := range entries {
					entryMap[e.ID] = e
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.BillingEntry]{Error: err}
				} else if e, ok := entryMap[key]; ok {
					results[i] = &dataloader.Result[*entities.BillingEntry]{Data: e}
				} else {
					results[i] = &dataloader.Result[*entities.BillingEntry]{Error: apperrors.NewNotFoundError("billing entry not found: " + key)}
				}
			}
			return results
		}),
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches fresh loaders to every request
func Middleware(billing BillingSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLoaders(r.Context(), NewLoaders(billing))))
		})
	}
}
