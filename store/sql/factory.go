package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-fulfillment/core"
)

type RepositoryFactory struct {
	db *bun.DB

	cacheService repositorycache.CacheService

	orderStore      *OrderStore
	resetTokenStore *ResetTokenStore
	userStore       *UserStore
	bookStore       *BookStore
	cachedBookStore *CachedBookStore
	shelfStore      *ShelfStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// WithCacheService layers the book cache over catalog reads. Must be set
// before BuildStores to take effect.
func (f *RepositoryFactory) WithCacheService(cacheService repositorycache.CacheService) *RepositoryFactory {
	if f != nil {
		f.cacheService = cacheService
	}
	return f
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.orderStore != nil && f.userStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) OrderStore() core.OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) ResetTokenStore() core.ResetTokenStore {
	if f == nil {
		return nil
	}
	return f.resetTokenStore
}

func (f *RepositoryFactory) AccountStore() core.AccountStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) CatalogStore() core.CatalogStore {
	if f == nil {
		return nil
	}
	if f.cachedBookStore != nil {
		return f.cachedBookStore
	}
	return f.bookStore
}

func (f *RepositoryFactory) ShelfStore() core.ShelfStore {
	if f == nil {
		return nil
	}
	return f.shelfStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	orderStore, err := NewOrderStore(f.db)
	if err != nil {
		return err
	}
	f.orderStore = orderStore

	resetTokenStore, err := NewResetTokenStore(f.db)
	if err != nil {
		return err
	}
	f.resetTokenStore = resetTokenStore

	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	f.userStore = userStore

	bookStore, err := NewBookStore(f.db)
	if err != nil {
		return err
	}
	f.bookStore = bookStore

	if f.cacheService != nil {
		cachedBookStore, err := NewCachedBookStore(bookStore, f.cacheService)
		if err != nil {
			return err
		}
		f.cachedBookStore = cachedBookStore
	}

	shelfStore, err := NewShelfStore(f.db)
	if err != nil {
		return err
	}
	f.shelfStore = shelfStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.StoreProvider = (*RepositoryFactory)(nil)
var _ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
