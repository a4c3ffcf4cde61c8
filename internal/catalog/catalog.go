package catalog

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/hyperplane-db/hyperplane/internal/dberr"
	"github.com/hyperplane-db/hyperplane/internal/events"
	"github.com/hyperplane-db/hyperplane/internal/logx"
	"github.com/hyperplane-db/hyperplane/internal/store"
	"github.com/hyperplane-db/hyperplane/internal/types"
)

// Store names backing the entity and index catalogs. Catalogue metadata
// is encoded as JSON, distinct from the big-endian binary encoding used
// for tuple data.
const (
	entityStoreName = "~catalog.entities"
	indexStoreName  = "~catalog.indexes"
)

// Catalog is the top-level handle over an environment's five logical
// catalogs (entity, column, index, sequence, statistics). It owns the
// close-lock that lets in-flight transactions finish before Close
// returns, mirroring the guarded-lifecycle shape of an embeddable
// manager object.
type Catalog struct {
	env    *store.Environment
	broker *events.Broker
	log    zerolog.Logger

	closeLock closeGuard
}

// Open creates or opens a catalogue backed by a bbolt environment at path.
func Open(path string) (*Catalog, error) {
	env, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	broker := events.NewBroker()
	broker.Start()
	return &Catalog{
		env:    env,
		broker: broker,
		log:    logx.WithComponent("catalog"),
	}, nil
}

// Broker returns the catalogue's data-change event broker, so observers
// can subscribe to inserts/updates/deletes. Secondary indexes are not
// maintained through it; the engine session updates them directly.
func (c *Catalog) Broker() *events.Broker { return c.broker }

// Environment exposes the underlying Page/Store environment, for
// components (transactions, index rebuilds) that need to open stores
// directly.
func (c *Catalog) Environment() *store.Environment { return c.env }

// Close stops the event broker and closes the backing environment. It
// blocks until every transaction opened via Begin has released the
// close-lock, then refuses any further Begin calls.
func (c *Catalog) Close() error {
	if !c.closeLock.close() {
		return nil
	}
	c.broker.Stop()
	return c.env.Close()
}

// CatalogTx is a catalogue-scoped transaction: a store.Tx plus the
// close-lock guard acquired for its lifetime.
type CatalogTx struct {
	cat *Catalog
	tx  *store.Tx
}

// Begin starts a catalogue transaction. It fails with ClosedDBO if the
// catalogue has already been closed.
func (c *Catalog) Begin(writable bool) (*CatalogTx, error) {
	if !c.closeLock.acquire() {
		return nil, dberr.New(dberr.KindClosedDBO, c.env.Path(), "catalogue is closed")
	}
	tx, err := c.env.Begin(writable)
	if err != nil {
		c.closeLock.release()
		return nil, err
	}
	return &CatalogTx{cat: c, tx: tx}, nil
}

// Store exposes the underlying store.Tx, for column/entity transactions
// layered above the catalogue.
func (t *CatalogTx) Store() *store.Tx { return t.tx }

// Commit finalizes the transaction and releases the close-lock.
func (t *CatalogTx) Commit() error {
	defer t.cat.closeLock.release()
	return t.tx.Commit()
}

// Rollback discards the transaction and releases the close-lock.
func (t *CatalogTx) Rollback() error {
	defer t.cat.closeLock.release()
	return t.tx.Rollback()
}

func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func entityKey(name types.Name) []byte { return []byte(name.String()) }
func indexKey(name types.Name) []byte  { return []byte(name.String()) }
