package wardrobe

import (
	"context"
	"slices"
	"sync"

	"github.com/erazemk/omara/internal/capture"
	"github.com/erazemk/omara/internal/model"
)

// Closet holds one owner's authoritative item list. Every mutation replaces
// the slice, so a slice returned by Items is never modified afterwards.
type Closet struct {
	svc     *Service
	ownerID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	items   []model.ClothingItem
	version uint64
	closed  bool
}

// NewCloset returns an empty Closet for ownerID.
func NewCloset(svc *Service, ownerID string) *Closet {
	ctx, cancel := context.WithCancel(context.Background())
	return &Closet{
		svc:     svc,
		ownerID: ownerID,
		ctx:     ctx,
		cancel:  cancel,
		items:   []model.ClothingItem{},
	}
}

// Owner returns the owner the closet belongs to.
func (c *Closet) Owner() string { return c.ownerID }

// Items returns the current list, newest first.
func (c *Closet) Items() []model.ClothingItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// List refetches the catalog and replaces the list. A result that raced with
// a local mutation is returned but not applied.
func (c *Closet) List(ctx context.Context) ([]model.ClothingItem, error) {
	c.mu.Lock()
	v := c.version
	c.mu.Unlock()

	items, err := c.svc.List(ctx, c.ownerID)
	if err != nil {
		return nil, err
	}
	c.apply(v, items)
	return items, nil
}

// Upload stores an image for the owner and returns its canonical path.
func (c *Closet) Upload(ctx context.Context, f File) (string, error) {
	return c.svc.Upload(ctx, c.ownerID, f)
}

// Save persists the item, prepends it to the list and schedules a refetch
// that reconciles the list with the catalog.
func (c *Closet) Save(ctx context.Context, in Item) (*model.ClothingItem, error) {
	item, err := c.svc.Save(ctx, c.ownerID, in)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return item, nil
	}

	next := make([]model.ClothingItem, 0, len(c.items)+1)
	next = append(next, *item)
	next = append(next, c.items...)
	c.items = next
	c.version++
	c.reconcile(c.version)

	return item, nil
}

// Add uploads a finished capture and saves it with the captured details. If
// saving fails the uploaded image is removed again.
func (c *Closet) Add(ctx context.Context, res *capture.Result) (*model.ClothingItem, error) {
	key, err := c.Upload(ctx, File{Name: res.Name, MIME: res.MIME, Data: res.Image})
	if err != nil {
		return nil, err
	}

	item, err := c.Save(ctx, Item{Fields: res.Details, ImagePath: key})
	if err != nil {
		if rerr := c.svc.Storage.Remove(ctx, key); rerr != nil {
			c.svc.logger().Warn("removing orphaned image failed", "key", key, "error", rerr)
		}
		return nil, err
	}
	return item, nil
}

// Remove deletes the item and filters it out of the list.
func (c *Closet) Remove(ctx context.Context, id string) error {
	if err := c.svc.Remove(ctx, c.ownerID, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	c.items = slices.DeleteFunc(slices.Clone(c.items), func(it model.ClothingItem) bool {
		return it.ID == id
	})
	c.version++
	return nil
}

// Close drops the list and waits for pending refetches. Late results are
// discarded.
func (c *Closet) Close() {
	c.mu.Lock()
	c.closed = true
	c.items = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// Wait blocks until scheduled refetches have finished.
func (c *Closet) Wait() {
	c.wg.Wait()
}

// reconcile must be called with c.mu held.
func (c *Closet) reconcile(v uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		items, err := c.svc.List(c.ctx, c.ownerID)
		if err != nil {
			if c.ctx.Err() == nil {
				c.svc.logger().Warn("refreshing closet failed", "owner", c.ownerID, "error", err)
			}
			return
		}
		c.apply(v, items)
	}()
}

func (c *Closet) apply(v uint64, items []model.ClothingItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.version != v {
		return
	}
	c.items = items
	c.version++
}
