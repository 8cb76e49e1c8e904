// Package syncengine holds the application service that reconciles source
// catalog data against a destination store: grouping variants, deciding
// create/add/update, and emitting an audit trail per action.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/domain/destination"
	"github.com/channelsync/backend/internal/infrastructure/retry"
)

// ---------------------------------------------------------------------------
// Options and result
// ---------------------------------------------------------------------------

// Options tunes one reconciler instance.
type Options struct {
	// InterCallDelay is a politeness pause after each state-changing
	// destination call, layered on top of the dispatcher's token waits
	InterCallDelay time.Duration
}

// DefaultOptions returns the shipped tuning.
func DefaultOptions() Options {
	return Options{InterCallDelay: 250 * time.Millisecond}
}

// Summary reports what one reconciler run did.
type Summary struct {
	// Groups is the number of product groups considered
	Groups int
	// GroupsFailed counts groups aborted by an error
	GroupsFailed int
	// ProductsCreated counts new destination products
	ProductsCreated int
	// VariantsAdded counts variants added to existing products
	VariantsAdded int
	// PricesUpdated counts destination price changes
	PricesUpdated int
	// StocksUpdated counts destination stock level sets
	StocksUpdated int
	// MissingSkipped counts SKUs left uncreated because the connection
	// disables create-missing
	MissingSkipped int

	// Succeeded lists SKUs whose group completed without error
	Succeeded []string
	// Failed maps SKUs of failed groups to the group's error
	Failed map[string]error
}

// ---------------------------------------------------------------------------
// Reconciler
// ---------------------------------------------------------------------------

// Reconciler synchronizes rule-filtered catalog items to one destination.
// Construct one per process; each run carries its own collection cache.
type Reconciler struct {
	policy *retry.Policy
	audit  catalogsync.AuditLogRepository
	logger *zap.Logger
	opts   Options

	// sleep is injectable for tests
	sleep func(ctx context.Context, d time.Duration)
}

// NewReconciler creates a reconciler using the given retry policy for every
// destination call.
func NewReconciler(policy *retry.Policy, audit catalogsync.AuditLogRepository, logger *zap.Logger, opts Options) *Reconciler {
	return &Reconciler{
		policy: policy,
		audit:  audit,
		logger: logger,
		opts:   opts,
		sleep:  sleeps,
	}
}

func sleeps(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Reconcile runs the full algorithm for one connection: stock filter, product
// grouping, exact-SKU matching, create/add as configured, price and stock
// updates, and collection sync. A failing product group is audited and
// isolated; the remaining groups still run.
func (r *Reconciler) Reconcile(ctx context.Context, conn catalogsync.Connection, platform destination.Platform, jobID uuid.UUID, items []catalogsync.CatalogItem) Summary {
	summary := Summary{Failed: make(map[string]error)}

	inStock := catalogsync.FilterInStock(items)
	groups := catalogsync.GroupByProduct(inStock)
	summary.Groups = len(groups)

	cache := newCollectionCache()
	run := &runState{
		conn:     conn,
		platform: platform,
		jobID:    jobID,
		cache:    cache,
	}

	for _, group := range groups {
		if err := r.reconcileGroup(ctx, run, group, &summary); err != nil {
			summary.GroupsFailed++
			for _, item := range group.Items {
				summary.Failed[item.SKU] = err
			}
			r.writeAudit(ctx, run, "", catalogsync.AuditLevelError,
				fmt.Sprintf("product group %s failed: %v", group.Key, err))
			r.logger.Error("product group failed",
				zap.String("connection_id", conn.ID.String()),
				zap.String("group", group.Key),
				zap.Error(err))
			continue
		}
		for _, item := range group.Items {
			summary.Succeeded = append(summary.Succeeded, item.SKU)
		}
	}
	return summary
}

// runState carries per-run collaborators so group methods stay short.
type runState struct {
	conn     catalogsync.Connection
	platform destination.Platform
	jobID    uuid.UUID
	cache    *collectionCache
}

// reconcileGroup handles one logical product.
func (r *Reconciler) reconcileGroup(ctx context.Context, run *runState, group catalogsync.ProductGroup, summary *Summary) error {
	existing := make(map[string]destination.Variant)
	var missing []catalogsync.CatalogItem

	for _, item := range group.Items {
		variant, err := r.findVariant(ctx, run.platform, item.SKU)
		switch {
		case err == nil:
			existing[item.SKU] = *variant
		case errors.Is(err, destination.ErrVariantNotFound):
			missing = append(missing, item)
		default:
			return fmt.Errorf("look up SKU %s: %w", item.SKU, err)
		}
	}

	if len(missing) > 0 {
		if run.conn.CreateMissing {
			if err := r.createMissing(ctx, run, group, missing, existing, summary); err != nil {
				return err
			}
		} else {
			for _, item := range missing {
				summary.MissingSkipped++
				r.writeAudit(ctx, run, item.SKU, catalogsync.AuditLevelWarn,
					"SKU not found on destination and create-missing is disabled")
			}
		}
	}

	for _, item := range group.Items {
		variant, ok := existing[item.SKU]
		if !ok {
			continue
		}
		if err := r.updateVariant(ctx, run, item, variant, summary); err != nil {
			return err
		}
	}

	if run.conn.SyncCategories && len(group.Items) > 0 {
		if err := r.syncCollections(ctx, run, group, existing); err != nil {
			return err
		}
	}
	return nil
}

// createMissing places the group's missing variants: onto the group's
// existing destination product when there is one, onto a same-titled product
// found by normalized title, or onto a brand-new product.
func (r *Reconciler) createMissing(ctx context.Context, run *runState, group catalogsync.ProductGroup, missing []catalogsync.CatalogItem, existing map[string]destination.Variant, summary *Summary) error {
	// An existing variant pins the destination product for the whole group.
	for _, v := range existing {
		return r.addVariants(ctx, run, v.ProductID, missing, existing, summary)
	}

	// No variant found: a same-titled product may still exist from a prior
	// partial sync or manual creation.
	title := catalogsync.BaseTitle(missing[0].Title)
	product, err := r.findProductByTitle(ctx, run.platform, title)
	switch {
	case err == nil:
		var toAdd []catalogsync.CatalogItem
		for _, item := range missing {
			if !product.HasSKU(item.SKU) {
				toAdd = append(toAdd, item)
			}
		}
		return r.addVariants(ctx, run, product.ID, toAdd, existing, summary)
	case errors.Is(err, destination.ErrProductNotFound):
		return r.createProduct(ctx, run, group, missing, existing, summary)
	default:
		return fmt.Errorf("search product by title %q: %w", title, err)
	}
}

// createProduct creates one destination product carrying all missing variants.
func (r *Reconciler) createProduct(ctx context.Context, run *runState, group catalogsync.ProductGroup, missing []catalogsync.CatalogItem, existing map[string]destination.Variant, summary *Summary) error {
	first := missing[0]
	spec := destination.NewProduct{
		Title:         catalogsync.BaseTitle(first.Title),
		Description:   first.Description,
		Vendor:        first.Vendor,
		ProductType:   first.ProductType,
		Images:        first.Images,
		PublishStatus: run.conn.InitialPublishStatus,
	}
	if run.conn.SyncTags {
		spec.Tags = first.Tags
	}
	for i, item := range missing {
		spec.Variants = append(spec.Variants, newVariantSpec(item, i+1))
	}

	var created *destination.Product
	err := r.call(ctx, func(ctx context.Context) error {
		p, err := run.platform.CreateProduct(ctx, spec)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return fmt.Errorf("create product %q: %w", spec.Title, err)
	}

	summary.ProductsCreated++
	for _, v := range created.Variants {
		existing[v.SKU] = v
	}
	for _, item := range missing {
		r.writeAudit(ctx, run, item.SKU, catalogsync.AuditLevelInfo,
			fmt.Sprintf("created product %q on %s", spec.Title, run.platform.Domain()))
	}
	return nil
}

// addVariants adds the given items as variants of an existing destination product.
func (r *Reconciler) addVariants(ctx context.Context, run *runState, productID string, items []catalogsync.CatalogItem, existing map[string]destination.Variant, summary *Summary) error {
	// existing grows as variants land; fix the position base up front so
	// the i-th added variant gets base+i+1, not a double-counted slot.
	base := len(existing)
	for i, item := range items {
		spec := newVariantSpec(item, base+i+1)

		var added *destination.Variant
		err := r.call(ctx, func(ctx context.Context) error {
			v, err := run.platform.AddVariant(ctx, productID, spec)
			if err != nil {
				return err
			}
			added = v
			return nil
		})
		if err != nil {
			return fmt.Errorf("add variant %s: %w", item.SKU, err)
		}

		existing[item.SKU] = *added
		summary.VariantsAdded++
		r.writeAudit(ctx, run, item.SKU, catalogsync.AuditLevelInfo,
			fmt.Sprintf("added variant to product %s", productID))
	}
	return nil
}

// updateVariant pushes price and stock to a destination variant.
func (r *Reconciler) updateVariant(ctx context.Context, run *runState, item catalogsync.CatalogItem, variant destination.Variant, summary *Summary) error {
	if run.conn.SyncPrice && !variant.Price.Equal(item.Price) {
		err := r.call(ctx, func(ctx context.Context) error {
			return run.platform.UpdateVariantPrice(ctx, variant.ID, item.Price, item.CompareAtPrice)
		})
		if err != nil {
			return fmt.Errorf("update price for %s: %w", item.SKU, err)
		}
		summary.PricesUpdated++
		r.writeAudit(ctx, run, item.SKU, catalogsync.AuditLevelInfo,
			fmt.Sprintf("updated price %s -> %s", variant.Price, item.Price))
	}

	if run.conn.LocationID != "" && variant.InventoryItemID != "" {
		err := r.call(ctx, func(ctx context.Context) error {
			return run.platform.SetInventoryLevel(ctx, destination.InventoryLevel{
				LocationID:      run.conn.LocationID,
				InventoryItemID: variant.InventoryItemID,
				Available:       item.Stock,
			})
		})
		if err != nil {
			return fmt.Errorf("set stock for %s: %w", item.SKU, err)
		}
		summary.StocksUpdated++
		r.writeAudit(ctx, run, item.SKU, catalogsync.AuditLevelInfo,
			fmt.Sprintf("updated stock to %d", item.Stock))
	}
	return nil
}

// syncCollections find-or-creates each source collection of the group's
// first item and, for custom collections, explicitly associates the product.
// Smart collections include members through their own destination-side rules.
func (r *Reconciler) syncCollections(ctx context.Context, run *runState, group catalogsync.ProductGroup, existing map[string]destination.Variant) error {
	first := group.Items[0]
	if len(first.Collections) == 0 {
		return nil
	}

	var productID string
	for _, item := range group.Items {
		if v, ok := existing[item.SKU]; ok {
			productID = v.ProductID
			break
		}
	}

	for _, src := range first.Collections {
		coll, created, err := run.cache.ensure(ctx, run.platform, src, r.call)
		if err != nil {
			return fmt.Errorf("ensure collection %q: %w", src.Title, err)
		}
		if created {
			r.writeAudit(ctx, run, first.SKU, catalogsync.AuditLevelInfo,
				fmt.Sprintf("created collection %q", src.Title))
		}

		if coll.Type != catalogsync.CollectionTypeCustom || productID == "" {
			continue
		}
		err = r.call(ctx, func(ctx context.Context) error {
			return run.platform.AddProductToCollection(ctx, coll.ID, productID)
		})
		if err != nil {
			return fmt.Errorf("add product to collection %q: %w", src.Title, err)
		}
	}
	return nil
}

// findVariant wraps the lookup in the retry policy; not-found is a result,
// not a retryable failure.
func (r *Reconciler) findVariant(ctx context.Context, platform destination.Platform, sku string) (*destination.Variant, error) {
	var found *destination.Variant
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		v, err := platform.FindVariantBySKU(ctx, sku)
		if err != nil {
			return err
		}
		found = v
		return nil
	})
	return found, err
}

func (r *Reconciler) findProductByTitle(ctx context.Context, platform destination.Platform, title string) (*destination.Product, error) {
	var found *destination.Product
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		p, err := platform.FindProductByTitle(ctx, title)
		if err != nil {
			return err
		}
		found = p
		return nil
	})
	return found, err
}

// call runs one destination call through the retry policy, then applies the
// politeness delay.
func (r *Reconciler) call(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.policy.Do(ctx, fn)
	r.sleep(ctx, r.opts.InterCallDelay)
	return err
}

// writeAudit appends one audit entry; audit failures are logged, never fatal.
func (r *Reconciler) writeAudit(ctx context.Context, run *runState, sku string, level catalogsync.AuditLevel, message string) {
	entry := catalogsync.NewAuditLogEntry(run.conn.ID, run.jobID, sku, level, message)
	if err := r.audit.Write(ctx, entry); err != nil {
		r.logger.Warn("audit write failed",
			zap.String("connection_id", run.conn.ID.String()),
			zap.Error(err))
	}
}

// newVariantSpec maps a catalog item to a variant creation payload.
func newVariantSpec(item catalogsync.CatalogItem, position int) destination.NewVariant {
	return destination.NewVariant{
		SKU:            item.SKU,
		Barcode:        item.Barcode,
		Price:          item.Price,
		CompareAtPrice: item.CompareAtPrice,
		WeightGrams:    item.WeightGrams,
		OptionTitle:    item.VariantTitle,
		Position:       position,
	}
}
