package kv

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// levelStore implements Store on top of leveldb. Calls are serialized so a
// closed handle is never touched.
type levelStore struct {
	sync.Mutex
	db       *leveldb.DB
	shutdown bool
}

// OpenLevelDB opens (or creates) a leveldb database in dir.
func OpenLevelDB(dir string) (Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb %v", dir)
	}
	return &levelStore{db: db}, nil
}

// OpenLevelDBMemory opens a leveldb database that lives only in memory.
func OpenLevelDBMemory() (Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &levelStore{db: db}, nil
}

func (l *levelStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return nil, errStoreClosed
	}

	b, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.WithStack(err)
	}
	return b, nil
}

func (l *levelStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return errStoreClosed
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(key), value)
	return errors.WithStack(l.db.Write(batch, nil))
}

func (l *levelStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return errStoreClosed
	}

	return errors.WithStack(l.db.Delete([]byte(key), nil))
}

func (l *levelStore) Close() error {
	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return nil
	}
	l.shutdown = true
	return l.db.Close()
}
