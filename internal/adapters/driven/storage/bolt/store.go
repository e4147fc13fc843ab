// Package bolt stores the sync checkpoint and sourced nodes in an embedded
// bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// dbFile is the database file name inside the data directory.
const dbFile = "contentsync.bolt"

var (
	bucketCheckpoint = []byte("checkpoint")
	bucketNodes      = []byte("nodes")
)

// Ensure the stores implement the interfaces.
var (
	_ driven.CheckpointStore = (*checkpointStore)(nil)
	_ driven.NodeStore       = (*nodeStore)(nil)
)

// Store is a bbolt database holding the checkpoint and one nested bucket of
// nodes per remote type.
type Store struct {
	db *bbolt.DB
}

// NewStore opens or creates the database in dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dataDir, dbFile), 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// CheckpointStore returns a CheckpointStore backed by this store.
func (s *Store) CheckpointStore() driven.CheckpointStore {
	return &checkpointStore{db: s.db}
}

// NodeStore returns a NodeStore backed by this store.
func (s *Store) NodeStore() driven.NodeStore {
	return &nodeStore{db: s.db}
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCheckpoint, bucketNodes} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

type checkpointStore struct {
	db *bbolt.DB
}

func (s *checkpointStore) Get(_ context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCheckpoint).Get([]byte(key))
		if v == nil {
			return domain.ErrNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (s *checkpointStore) Set(_ context.Context, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCheckpoint).Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		return nil
	})
}

func (s *checkpointStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCheckpoint).Delete([]byte(key))
	})
}

// storedNode is the JSON value of a node record.
type storedNode struct {
	ID        string          `json:"id"`
	SiteID    string          `json:"siteId,omitempty"`
	Data      json.RawMessage `json:"data"`
	SourcedAt time.Time       `json:"sourcedAt"`
}

type nodeStore struct {
	db *bbolt.DB
}

func (s *nodeStore) Upsert(_ context.Context, node domain.Node) error {
	if node.RemoteID.ID == "" || node.RemoteID.TypeName == "" {
		return fmt.Errorf("%w: node requires id and type", domain.ErrInvalidInput)
	}
	data := node.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	value, err := json.Marshal(storedNode{
		ID:        node.RemoteID.ID,
		SiteID:    node.RemoteID.SiteID,
		Data:      data,
		SourcedAt: node.SourcedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding node %s: %w", node.RemoteID.Key(), err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketNodes).CreateBucketIfNotExists([]byte(node.RemoteID.TypeName))
		if err != nil {
			return fmt.Errorf("creating bucket for %s: %w", node.RemoteID.TypeName, err)
		}
		return b.Put([]byte(node.RemoteID.Key()), value)
	})
}

func (s *nodeStore) Delete(_ context.Context, id domain.RemoteID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNodes).Bucket([]byte(id.TypeName))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id.Key()))
	})
}

func (s *nodeStore) Get(_ context.Context, id domain.RemoteID) (*domain.Node, error) {
	var node *domain.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNodes).Bucket([]byte(id.TypeName))
		if b == nil {
			return domain.ErrNotFound
		}
		v := b.Get([]byte(id.Key()))
		if v == nil {
			return domain.ErrNotFound
		}
		n, err := decodeNode(id.TypeName, v)
		if err != nil {
			return err
		}
		node = &n
		return nil
	})
	return node, err
}

// List returns the nodes of a type ordered by remote id.
func (s *nodeStore) List(_ context.Context, typeName string) ([]domain.Node, error) {
	var nodes []domain.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNodes).Bucket([]byte(typeName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			n, err := decodeNode(typeName, v)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].RemoteID.ID != nodes[j].RemoteID.ID {
			return nodes[i].RemoteID.ID < nodes[j].RemoteID.ID
		}
		return nodes[i].RemoteID.SiteID < nodes[j].RemoteID.SiteID
	})
	return nodes, nil
}

func (s *nodeStore) Counts(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEachBucket(func(name []byte) error {
			n := 0
			c := tx.Bucket(bucketNodes).Bucket(name).Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				n++
			}
			if n > 0 {
				counts[string(name)] = n
			}
			return nil
		})
	})
	return counts, err
}

func decodeNode(typeName string, v []byte) (domain.Node, error) {
	var sn storedNode
	if err := json.Unmarshal(v, &sn); err != nil {
		return domain.Node{}, fmt.Errorf("decoding %s node: %w", typeName, err)
	}
	return domain.Node{
		RemoteID:  domain.RemoteID{ID: sn.ID, TypeName: typeName, SiteID: sn.SiteID},
		Data:      sn.Data,
		SourcedAt: sn.SourcedAt,
	}, nil
}
